package mdnsadvert

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/cyra/airprint-everywhere/internal/printer"
)

// URFTokens is the capability token set advertised in both the mDNS TXT
// "URF" key and the IPP Get-Printer-Attributes "urf-supported" attribute;
// spec.md §3 requires the two stay identical.
var URFTokens = []string{"V1.4", "W8", "DM1", "CP1", "RS300", "SRGB24", "IS1"}

// TXTRecords holds the DNS-SD TXT records for one advertised printer,
// built in the deterministic key order AirPrint TXT consumers expect.
type TXTRecords struct {
	keys   []string
	values map[string]string
}

func newTXTRecords() *TXTRecords {
	return &TXTRecords{values: make(map[string]string)}
}

// Set adds or overwrites a key, preserving first-insertion order.
func (t *TXTRecords) Set(key, value string) {
	if _, ok := t.values[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.values[key] = value
}

// Get retrieves a single TXT value.
func (t *TXTRecords) Get(key string) (string, bool) {
	v, ok := t.values[key]
	return v, ok
}

// Pairs returns "key=value" strings in insertion order, the shape
// hashicorp/mdns's MDNSService.TXT field expects.
func (t *TXTRecords) Pairs() []string {
	out := make([]string, 0, len(t.keys))
	for _, k := range t.keys {
		out = append(out, fmt.Sprintf("%s=%s", k, t.values[k]))
	}
	return out
}

// NewTXTRecords builds the AirPrint-mandated TXT record set for p per
// spec.md §3. instanceUUID should be stable for the lifetime of the share so
// repeated advertise() calls (e.g. heartbeat re-registration) don't churn
// the UUID clients have cached.
func NewTXTRecords(p printer.Printer, instanceUUID uuid.UUID) *TXTRecords {
	t := newTXTRecords()

	t.Set("txtvers", "1")
	t.Set("qtotal", "1")
	t.Set("rp", fmt.Sprintf("ipp/print/%s", p.ID))

	model := p.Name
	if model == "" {
		model = "Shared Printer"
	}
	t.Set("ty", model)
	t.Set("product", fmt.Sprintf("(%s)", sanitizeProduct(model)))

	// URF ordered first per the teacher's comment that AirPrint clients
	// scan pdl left-to-right looking for their preferred format.
	t.Set("pdl", "image/urf,application/pdf,image/jpeg,image/png")
	t.Set("URF", strings.Join(URFTokens, ","))

	t.Set("Color", "T")
	t.Set("Duplex", "T")
	t.Set("Copies", "T")

	t.Set("UUID", instanceUUID.String())
	t.Set("priority", "50")
	t.Set("kind", "document")
	t.Set("PaperMax", "legal-A4")
	t.Set("printer-state", fmt.Sprintf("%d", printerStateCode(p.Status)))
	t.Set("printer-type", "0x8009")
	t.Set("adminurl", fmt.Sprintf("http://%s.local./", sanitizeInstanceName(p.Name)))
	t.Set("universal", "true")

	if p.Status == printer.StatusError && p.Reason != "" {
		t.Set("note", p.Reason)
	}

	return t
}

func printerStateCode(s printer.Status) int {
	switch s {
	case printer.StatusOnline:
		return 3 // idle
	case printer.StatusBusy:
		return 4 // processing
	default:
		return 5 // stopped
	}
}

func sanitizeProduct(model string) string {
	model = strings.ReplaceAll(model, "(", "")
	model = strings.ReplaceAll(model, ")", "")
	if len(model) > 128 {
		model = model[:128]
	}
	return model
}

// sanitizeInstanceName turns a printer's display name into the mDNS
// instance label spec.md §4.3 shows as "air-<name with spaces -> dashes>".
func sanitizeInstanceName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "printer"
	}
	name = strings.Map(func(r rune) rune {
		switch {
		case r == ' ':
			return '-'
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-' || r == '_':
			return r
		default:
			return -1
		}
	}, name)
	return "air-" + name
}
