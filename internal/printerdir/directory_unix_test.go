//go:build linux || darwin

package printerdir

import "testing"

func TestParseLpstatIdleAndDisabled(t *testing.T) {
	text := "printer Office-Printer is idle.  enabled since Mon Jan 01 00:00:00 2026\n" +
		"printer Label-Printer disabled since Mon Jan 01 00:00:00 2026\n" +
		"printer Shop-Printer now printing Shop-Printer-1.  enabled since ...\n"

	printers := parseLpstat(text)
	if len(printers) != 3 {
		t.Fatalf("got %d printers, want 3", len(printers))
	}
	if printers[0].Name != "Office-Printer" || printers[0].Status.String() != "online" {
		t.Errorf("printers[0] = %+v, want Office-Printer/online", printers[0])
	}
	if printers[1].Name != "Label-Printer" || printers[1].Status.String() != "offline" {
		t.Errorf("printers[1] = %+v, want Label-Printer/offline", printers[1])
	}
	if printers[2].Name != "Shop-Printer" || printers[2].Status.String() != "busy" {
		t.Errorf("printers[2] = %+v, want Shop-Printer/busy", printers[2])
	}
}

func TestParseLpstatIgnoresNonPrinterLines(t *testing.T) {
	text := "scheduler is running\nprinter Office-Printer is idle.  enabled\n"
	printers := parseLpstat(text)
	if len(printers) != 1 {
		t.Fatalf("got %d printers, want 1", len(printers))
	}
}
