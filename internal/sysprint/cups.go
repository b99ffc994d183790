// Package sysprint adapts the `SystemPrinter.submit(printer, path, options)`
// external collaborator spec.md §1/§6 treats as a contract into a concrete
// CUPS hand-off, grounded on the teacher repo's internal/cups and
// internal/ipp/cups_proxy.go.
package sysprint

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	goipp "github.com/phin1x/go-ipp"
	"github.com/rs/zerolog"

	"github.com/cyra/airprint-everywhere/internal/printer"
)

// CUPSPrinter submits spooled documents to a CUPS destination queue over
// IPP, the same wire exchange the teacher's CUPSProxy performed, now
// parameterised per-printer instead of hardcoded to one label printer: the
// queue name is the host-enumerated printer's own Name (lpstat/Get-Printer
// report the CUPS queue name directly), not a separately configured value.
type CUPSPrinter struct {
	host       string
	port       int
	httpClient *http.Client
	log        zerolog.Logger
}

// NewCUPSPrinter returns a SystemPrinter that hands documents to CUPS
// queues on host:port, one queue per printer.Name passed to Submit.
func NewCUPSPrinter(host string, port int, log zerolog.Logger) *CUPSPrinter {
	return &CUPSPrinter{
		host: host,
		port: port,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		log: log.With().Str("component", "sysprint").Logger(),
	}
}

// Submit reads path and forwards it to the CUPS queue named p.Name as a
// Print-Job request. It reports false (without returning an error, per the
// SystemPrinter contract) on any failure, logging the cause for diagnosis.
func (c *CUPSPrinter) Submit(p printer.Printer, path string, opts printer.PrintOptions) bool {
	log := c.log.With().Str("printer", p.Name).Logger()

	docData, err := os.ReadFile(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("failed to read spooled document")
		return false
	}

	req := goipp.NewRequest(goipp.OperationPrintJob, 1)
	printerURI := fmt.Sprintf("ipp://%s:%d/printers/%s", c.host, c.port, p.Name)
	req.OperationAttributes["printer-uri"] = printerURI
	req.OperationAttributes["requesting-user-name"] = "airprint-everywhere"
	req.OperationAttributes["document-format"] = "application/pdf"
	if opts.JobName != "" {
		req.OperationAttributes["job-name"] = opts.JobName
	}
	if opts.Copies > 0 {
		req.OperationAttributes["copies"] = opts.Copies
	}
	if opts.Sides != "" {
		req.OperationAttributes["sides"] = opts.Sides
	}
	if opts.Media != "" {
		req.OperationAttributes["media"] = opts.Media
	}

	payload, err := req.Encode()
	if err != nil {
		log.Error().Err(err).Msg("failed to encode IPP request")
		return false
	}
	fullPayload := append(payload, docData...)

	cupsURL := fmt.Sprintf("http://%s:%d/printers/%s", c.host, c.port, p.Name)
	httpReq, err := http.NewRequest(http.MethodPost, cupsURL, bytes.NewReader(fullPayload))
	if err != nil {
		log.Error().Err(err).Msg("failed to build CUPS request")
		return false
	}
	httpReq.Header.Set("Content-Type", "application/ipp")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Error().Err(err).Msg("failed to reach CUPS")
		return false
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error().Err(err).Msg("failed to read CUPS response")
		return false
	}

	ippResp, err := goipp.NewResponseDecoder(bytes.NewReader(respBody)).Decode(nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to decode CUPS response")
		return false
	}

	if ippResp.StatusCode != goipp.StatusOk {
		log.Error().Interface("status", ippResp.StatusCode).Msg("CUPS rejected the job")
		return false
	}

	log.Info().Msg("job accepted by CUPS")
	return true
}
