package mdnsadvert

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/cyra/airprint-everywhere/internal/printer"
)

func TestNewTXTRecordsIncludesRequiredKeys(t *testing.T) {
	p := printer.Printer{ID: "p1", Name: "Office Printer", Status: printer.StatusOnline}
	txt := NewTXTRecords(p, uuid.MustParse("00000000-0000-0000-0000-000000000001"))

	required := []string{
		"txtvers", "qtotal", "rp", "ty", "product", "pdl", "URF",
		"Color", "Duplex", "Copies", "UUID", "priority", "kind",
		"PaperMax", "printer-state", "printer-type", "adminurl", "universal",
	}
	for _, key := range required {
		if _, ok := txt.Get(key); !ok {
			t.Errorf("missing required TXT key %q", key)
		}
	}
}

func TestNewTXTRecordsPDLIncludesURF(t *testing.T) {
	p := printer.Printer{ID: "p1", Name: "Office Printer"}
	txt := NewTXTRecords(p, uuid.New())
	pdl, _ := txt.Get("pdl")
	if !strings.Contains(pdl, "image/urf") {
		t.Errorf("pdl = %q, want it to contain image/urf", pdl)
	}
}

func TestNewTXTRecordsURFMatchesTokenSet(t *testing.T) {
	p := printer.Printer{ID: "p1", Name: "Office Printer"}
	txt := NewTXTRecords(p, uuid.New())
	urf, _ := txt.Get("URF")
	if urf != strings.Join(URFTokens, ",") {
		t.Errorf("URF = %q, want %q", urf, strings.Join(URFTokens, ","))
	}
}

func TestNewTXTRecordsUniversalTrue(t *testing.T) {
	p := printer.Printer{ID: "p1", Name: "Office Printer"}
	txt := NewTXTRecords(p, uuid.New())
	if v, _ := txt.Get("universal"); v != "true" {
		t.Errorf("universal = %q, want true", v)
	}
}

func TestNewTXTRecordsErrorNoteFromReason(t *testing.T) {
	p := printer.Printer{ID: "p1", Name: "Office Printer", Status: printer.StatusError, Reason: "paper jam"}
	txt := NewTXTRecords(p, uuid.New())
	if v, ok := txt.Get("note"); !ok || v != "paper jam" {
		t.Errorf("note = %q, ok=%v, want paper jam", v, ok)
	}
}

func TestSanitizeInstanceNameReplacesSpaces(t *testing.T) {
	got := sanitizeInstanceName("Office Printer 2")
	if got != "air-Office-Printer-2" {
		t.Errorf("sanitizeInstanceName = %q, want air-Office-Printer-2", got)
	}
}

func TestPairsAreKeyValueFormatted(t *testing.T) {
	p := printer.Printer{ID: "p1", Name: "Office Printer"}
	txt := NewTXTRecords(p, uuid.New())
	for _, pair := range txt.Pairs() {
		if !strings.Contains(pair, "=") {
			t.Errorf("pair %q missing '='", pair)
		}
	}
}
