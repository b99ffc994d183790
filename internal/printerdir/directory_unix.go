//go:build linux || darwin

package printerdir

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/cyra/airprint-everywhere/internal/printer"
)

// LpstatDirectory enumerates CUPS-known printers via `lpstat -p`, the same
// command printer_detector.rs shells out to on macOS and Linux.
type LpstatDirectory struct{}

// NewDirectory returns the platform Directory for linux/darwin.
func NewDirectory() *LpstatDirectory {
	return &LpstatDirectory{}
}

func (d *LpstatDirectory) Detect() []printer.Printer {
	out, err := exec.Command("lpstat", "-p").Output()
	if err != nil {
		return nil
	}
	return parseLpstat(string(out))
}

func (d *LpstatDirectory) DetectOne(id string) (printer.Printer, bool) {
	return detectOneFrom(d.Detect(), id)
}

// parseLpstat parses lines like:
//
//	printer Office-Printer is idle.  enabled since ...
//	printer Label-Printer disabled since ...
func parseLpstat(text string) []printer.Printer {
	var printers []printer.Printer
	for i, line := range strings.Split(text, "\n") {
		if !strings.HasPrefix(line, "printer ") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		name := fields[1]

		status := printer.StatusOffline
		switch {
		case strings.Contains(line, "idle") || strings.Contains(line, "ready"):
			status = printer.StatusOnline
		case strings.Contains(line, "processing") || strings.Contains(line, "printing"):
			status = printer.StatusBusy
		}

		printers = append(printers, printer.Printer{
			ID:     fmt.Sprintf("unix-printer-%d", i),
			Name:   name,
			Status: status,
		})
	}
	return printers
}
