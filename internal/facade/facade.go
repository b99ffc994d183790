// Package facade exposes the four printer-sharing operations
// plus set_language, the command surface spec.md §4.6/§6 describes as
// callable from a UI shell. Each call acquires the coordinator, invokes the
// corresponding method, and converts any structured error into a
// human-readable string via Translator — no Go error type crosses this
// boundary.
package facade

import (
	"errors"

	"github.com/cyra/airprint-everywhere/internal/i18n"
	"github.com/cyra/airprint-everywhere/internal/lifecycle"
	"github.com/cyra/airprint-everywhere/internal/printer"
	"github.com/cyra/airprint-everywhere/internal/printerdir"
)

// Facade wires the printer directory, lifecycle coordinator, and
// translator together into the command surface.
type Facade struct {
	dir        printerdir.Directory
	coord      *lifecycle.Coordinator
	translator *i18n.Translator
}

// New constructs a Facade.
func New(dir printerdir.Directory, coord *lifecycle.Coordinator, translator *i18n.Translator) *Facade {
	return &Facade{dir: dir, coord: coord, translator: translator}
}

// GetPrinters lists every host-known printer.
func (f *Facade) GetPrinters() []printer.Printer {
	return f.dir.Detect()
}

// GetSharedPrinters lists printers currently shared via AirPrint.
func (f *Facade) GetSharedPrinters() []printer.Printer {
	return f.coord.ListShared()
}

// SharePrinter looks up printerID in the directory and shares it, returning
// the shared printer's id on success or a translated error string.
func (f *Facade) SharePrinter(printerID string) (string, string) {
	p, ok := f.dir.DetectOne(printerID)
	if !ok {
		return "", f.translate(lifecycle.ErrPrinterNotFound, map[string]string{"id": printerID})
	}

	id, err := f.coord.Share(p)
	if err != nil {
		return "", f.translate(err, map[string]string{"id": printerID})
	}
	return id, ""
}

// StopPrinter withdraws printerID's AirPrint advertisement.
func (f *Facade) StopPrinter(printerID string) string {
	if err := f.coord.Stop(printerID); err != nil {
		return f.translate(err, map[string]string{"id": printerID})
	}
	return ""
}

// UnsharePrinter is an alias for StopPrinter matching spec.md §6's naming
// for the UI-facing operation.
func (f *Facade) UnsharePrinter(printerID string) string {
	return f.StopPrinter(printerID)
}

// SetLanguage delegates to the translator per spec.md §6.
func (f *Facade) SetLanguage(lang string) {
	f.translator.SetLanguage(lang)
}

func (f *Facade) translate(err error, vars map[string]string) string {
	key := errorKey(err)
	return f.translator.T(key, vars)
}

// errorKey maps a structured error to the translation-catalog key the
// active locale should render. Unrecognised errors fall back to a generic
// key so a human-readable (if untranslated) string is always returned.
func errorKey(err error) string {
	switch {
	case errors.Is(err, lifecycle.ErrAlreadyShared):
		return "errors.already_shared"
	case errors.Is(err, lifecycle.ErrNotShared):
		return "errors.not_shared"
	case errors.Is(err, lifecycle.ErrPrinterNotFound):
		return "errors.printer_not_found"
	case errors.Is(err, lifecycle.ErrIppStartFailed):
		return "errors.ipp_start_failed"
	case errors.Is(err, lifecycle.ErrMdnsStartFailed):
		return "errors.mdns_start_failed"
	default:
		return "errors.unknown"
	}
}
