package sysprint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/cyra/airprint-everywhere/internal/printer"
)

var testPrinter = printer.Printer{ID: "p1", Name: "office", Status: printer.StatusOnline}

func TestSubmitFailsWhenDocumentMissing(t *testing.T) {
	c := NewCUPSPrinter("127.0.0.1", 631, zerolog.Nop())
	if c.Submit(testPrinter, filepath.Join(t.TempDir(), "does-not-exist.pdf"), printer.DefaultPrintOptions()) {
		t.Fatal("Submit() = true, want false for a missing document")
	}
}

func TestSubmitFailsWhenCUPSUnreachable(t *testing.T) {
	doc := filepath.Join(t.TempDir(), "job.pdf")
	if err := os.WriteFile(doc, []byte("%PDF-1.4 fake"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	// Port 1 is reserved and nothing listens there, so the HTTP POST fails.
	c := NewCUPSPrinter("127.0.0.1", 1, zerolog.Nop())
	if c.Submit(testPrinter, doc, printer.DefaultPrintOptions()) {
		t.Fatal("Submit() = true, want false when CUPS is unreachable")
	}
}
