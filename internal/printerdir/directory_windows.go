//go:build windows

package printerdir

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/cyra/airprint-everywhere/internal/printer"
)

// PowerShellDirectory enumerates printers via PowerShell's Get-Printer
// cmdlet, falling back to wmic when PowerShell is unavailable or returns a
// non-zero exit code, mirroring printer_detector.rs's Windows path.
type PowerShellDirectory struct{}

// NewDirectory returns the platform Directory for windows.
func NewDirectory() *PowerShellDirectory {
	return &PowerShellDirectory{}
}

type psPrinter struct {
	Name          string `json:"Name"`
	PortName      string `json:"PortName"`
	PrinterStatus int    `json:"PrinterStatus"`
}

func (d *PowerShellDirectory) Detect() []printer.Printer {
	out, err := exec.Command("powershell", "-Command",
		"Get-Printer | Select-Object Name, PortName, PrinterStatus | ConvertTo-Json -Compress").Output()
	if err != nil {
		return d.detectWmic()
	}

	printers, ok := parsePowerShellJSON(out)
	if !ok {
		return d.detectWmic()
	}
	return printers
}

func (d *PowerShellDirectory) DetectOne(id string) (printer.Printer, bool) {
	return detectOneFrom(d.Detect(), id)
}

func parsePowerShellJSON(out []byte) ([]printer.Printer, bool) {
	var list []psPrinter
	if err := json.Unmarshal(out, &list); err != nil {
		// ConvertTo-Json emits a bare object, not an array, when there is
		// exactly one printer.
		var single psPrinter
		if err := json.Unmarshal(out, &single); err != nil {
			return nil, false
		}
		list = []psPrinter{single}
	}

	printers := make([]printer.Printer, 0, len(list))
	for i, p := range list {
		if p.Name == "" {
			continue
		}
		status := printer.StatusOnline
		switch p.PrinterStatus {
		case 7, 8, 9:
			status = printer.StatusOffline
		}
		printers = append(printers, printer.Printer{
			ID:     fmt.Sprintf("printer-%d-%s", i, strings.ReplaceAll(p.Name, " ", "-")),
			Name:   p.Name,
			Status: status,
		})
	}
	return printers, true
}

func (d *PowerShellDirectory) detectWmic() []printer.Printer {
	out, err := exec.Command("wmic", "printer", "get", "Name", "/format:csv").Output()
	if err != nil {
		return nil
	}

	lines := strings.Split(string(out), "\n")
	var printers []printer.Printer
	for i, line := range lines {
		if i == 0 {
			continue // header row
		}
		parts := strings.Split(line, ",")
		if len(parts) < 2 {
			continue
		}
		name := strings.TrimSpace(parts[len(parts)-1])
		if name == "" || name == "Name" {
			continue
		}
		printers = append(printers, printer.Printer{
			ID:     fmt.Sprintf("printer-%d", i),
			Name:   name,
			Status: printer.StatusOnline,
		})
	}
	return printers
}
