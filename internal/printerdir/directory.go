// Package printerdir implements the `PrinterDirectory` external
// collaborator spec.md §1/§6 treats as a contract: enumerating host-known
// printers as {id, name, status} triples. Concrete enumeration is
// OS-specific (see directory_unix.go / directory_windows.go), grounded on
// original_source/services/printer_detector.rs.
package printerdir

import "github.com/cyra/airprint-everywhere/internal/printer"

// Directory enumerates printers known to the host OS.
type Directory interface {
	// Detect returns every printer the host currently knows about.
	Detect() []printer.Printer
	// DetectOne returns the printer with the given id, or false if absent.
	DetectOne(id string) (printer.Printer, bool)
}

// detectOneFrom backs every platform's DetectOne: detect everything,
// then filter by id, matching printer_detector.rs's detect_one.
func detectOneFrom(printers []printer.Printer, id string) (printer.Printer, bool) {
	for _, p := range printers {
		if p.ID == id {
			return p, true
		}
	}
	return printer.Printer{}, false
}
