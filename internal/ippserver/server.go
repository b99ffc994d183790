// Package ippserver is the HTTP/1.1 listener that speaks the IPP subset
// AirPrint clients use: Get-Printer-Attributes, Validate-Job and Print-Job,
// for every printer the lifecycle coordinator has currently shared.
package ippserver

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cyra/airprint-everywhere/internal/ipp"
	"github.com/cyra/airprint-everywhere/internal/mdnsadvert"
	"github.com/cyra/airprint-everywhere/internal/printer"
)

// SystemPrinter hands a spooled document file to the host print subsystem.
// Submit reports whether the host accepted the job; the caller owns the
// file's lifetime either way. p identifies which host queue the job is
// destined for, since one SystemPrinter instance is shared across every
// printer this server registers.
type SystemPrinter interface {
	Submit(p printer.Printer, path string, opts printer.PrintOptions) bool
}

const resourcePrefix = "/ipp/print/"

// Server is the single process-wide IPP listener. One instance is shared
// across every printer the lifecycle coordinator has registered; printers
// are distinguished by the resource path (/ipp/print/<id>), not by port.
type Server struct {
	addr     string
	hostname string // configured fallback hostname, may be ""
	sys      SystemPrinter
	log      zerolog.Logger

	mu       sync.Mutex
	printers map[string]printer.Printer
	httpSrv  *http.Server
}

// NewServer constructs a Server. addr is a "host:port" listen address
// (spec.md §4.2 calls for 0.0.0.0:631); hostname is the operator-configured
// fallback used when a request arrives with no Host header.
func NewServer(addr, hostname string, sys SystemPrinter, log zerolog.Logger) *Server {
	return &Server{
		addr:     addr,
		hostname: hostname,
		sys:      sys,
		log:      log.With().Str("component", "ipp-server").Logger(),
		printers: make(map[string]printer.Printer),
	}
}

// Register makes p reachable at /ipp/print/<p.ID>. Safe to call while the
// server is running.
func (s *Server) Register(p printer.Printer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.printers[p.ID] = p
}

// Unregister removes a printer from dispatch.
func (s *Server) Unregister(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.printers, id)
}

func (s *Server) lookup(id string) (printer.Printer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.printers[id]
	return p, ok
}

func (s *Server) snapshot() []printer.Printer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]printer.Printer, 0, len(s.printers))
	for _, p := range s.printers {
		out = append(out, p)
	}
	return out
}

// Start binds the listener and begins serving in the background. Each
// inbound request is handled on its own goroutine via net/http's default
// per-connection model, matching spec.md §4.2's "each request handled on
// its own worker".
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("ipp server listen %s: %w", s.addr, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRequest)
	s.httpSrv = &http.Server{Handler: mux}

	s.log.Info().Str("addr", s.addr).Msg("starting IPP server")
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("IPP server stopped unexpectedly")
		}
	}()
	return nil
}

// Stop gracefully shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	s.log.Info().Msg("stopping IPP server")
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if !strings.Contains(ct, "application/ipp") {
		s.handleBrowserProbe(w, r)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to read request body")
		w.Header().Set("Content-Type", "application/ipp")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(errorResponse(ipp.StatusServerErrorInternal, 0))
		return
	}

	if len(body) < ipp.HeaderLen {
		// Permissive reply per spec.md §4.2/§9: keeps some clients from
		// retrying the same short request in a tight loop.
		s.log.Warn().Int("len", len(body)).Msg("request shorter than IPP header")
		w.Header().Set("Content-Type", "application/ipp")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(errorResponse(ipp.StatusOK, 1))
		return
	}

	requestID := binary.BigEndian.Uint32(body[4:8])

	msg, err := ipp.Decode(body)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to decode IPP request")
		w.Header().Set("Content-Type", "application/ipp")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(errorResponse(ipp.StatusClientErrorBadRequest, requestID))
		return
	}

	effectiveHost := effectiveHost(r.Host, s.hostname)
	p, _ := s.lookup(printerIDFromPath(r.URL.Path))

	var response []byte
	switch msg.OpOrStatus {
	case ipp.OpGetPrinterAttributes:
		response = s.handleGetPrinterAttributes(msg.RequestID, p, effectiveHost)
	case ipp.OpValidateJob:
		response = handleValidateJob(msg.RequestID)
	case ipp.OpPrintJob:
		response = s.handlePrintJob(msg, p, effectiveHost)
	default:
		s.log.Warn().Uint16("operation", msg.OpOrStatus).Msg("unsupported IPP operation")
		response = errorResponse(ipp.StatusOperationNotSupported, msg.RequestID)
	}

	w.Header().Set("Content-Type", "application/ipp")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(response)
}

func (s *Server) handleBrowserProbe(w http.ResponseWriter, r *http.Request) {
	host := effectiveHost(r.Host, s.hostname)
	printers := s.snapshot()

	var b strings.Builder
	b.WriteString("<html><head><title>AirPrint Everywhere Bridge</title></head><body>")
	b.WriteString("<h1>AirPrint Everywhere Bridge</h1><ul>")
	for _, p := range printers {
		uri := printerURI(host, s.addr, p.ID)
		fmt.Fprintf(&b, "<li>%s &mdash; <code>%s</code></li>", htmlEscape(p.Name), uri)
	}
	b.WriteString("</ul></body></html>")

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(b.String()))
}

func htmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}

func effectiveHost(hostHeader, configured string) string {
	if hostHeader != "" {
		if h, _, err := net.SplitHostPort(hostHeader); err == nil {
			return h
		}
		return hostHeader
	}
	return configured
}

func printerIDFromPath(path string) string {
	return strings.TrimPrefix(strings.TrimPrefix(path, resourcePrefix), "/")
}

func listenPort(addr string) string {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "631"
	}
	return port
}

func printerURI(host, addr, printerID string) string {
	return fmt.Sprintf("ipp://%s:%s%s%s", host, listenPort(addr), resourcePrefix, printerID)
}

func (s *Server) handleGetPrinterAttributes(requestID uint32, p printer.Printer, effectiveHost string) []byte {
	s.log.Debug().Str("printer", p.ID).Msg("handling Get-Printer-Attributes")

	op := ipp.NewOperationGroup("utf-8", "en")

	pg := ipp.Group{Tag: ipp.TagPrinterGroup}
	name := p.Name
	if name == "" {
		name = "Shared Printer"
	}
	pg.Add("printer-name", ipp.StrValue(ipp.TagNameWithoutLang, name))
	pg.Add("printer-info", ipp.StrValue(ipp.TagTextWithoutLang, name))
	pg.Add("printer-location", ipp.StrValue(ipp.TagTextWithoutLang, ""))
	pg.Add("printer-make-and-model", ipp.StrValue(ipp.TagTextWithoutLang, "AirPrint Everywhere Bridge"))

	uri := printerURI(effectiveHost, s.addr, p.ID)
	uriValues := []ipp.Value{ipp.StrValue(ipp.TagURI, uri)}
	if s.hostname != "" && s.hostname != effectiveHost {
		uriValues = append(uriValues, ipp.StrValue(ipp.TagURI, printerURI(s.hostname, s.addr, p.ID)))
	}
	pg.AddMulti("printer-uri-supported", uriValues...)

	pg.Add("printer-state", ipp.IntValue(ipp.TagEnum, 3)) // idle
	pg.Add("printer-state-reasons", ipp.StrValue(ipp.TagKeyword, "none"))
	pg.Add("printer-is-accepting-jobs", ipp.BoolValue(true))

	pg.AddMulti("operations-supported",
		ipp.IntValue(ipp.TagEnum, int32(ipp.OpPrintJob)),
		ipp.IntValue(ipp.TagEnum, int32(ipp.OpGetPrinterAttributes)),
		ipp.IntValue(ipp.TagEnum, int32(ipp.OpValidateJob)),
	)

	pg.AddMulti("document-format-supported",
		ipp.StrValue(ipp.TagMimeMediaType, "application/pdf"),
		ipp.StrValue(ipp.TagMimeMediaType, "image/jpeg"),
		ipp.StrValue(ipp.TagMimeMediaType, "image/urf"),
		ipp.StrValue(ipp.TagMimeMediaType, "image/pwg-raster"),
	)
	pg.Add("document-format-default", ipp.StrValue(ipp.TagMimeMediaType, "application/pdf"))

	pg.Add("color-supported", ipp.BoolValue(true))
	pg.AddMulti("output-mode-supported",
		ipp.StrValue(ipp.TagKeyword, "monochrome"),
		ipp.StrValue(ipp.TagKeyword, "color"),
	)
	pg.Add("output-mode-default", ipp.StrValue(ipp.TagKeyword, "color"))

	pg.Add("copies-supported", ipp.RangeValue(1, 99))
	pg.Add("copies-default", ipp.IntValue(ipp.TagInteger, 1))

	pg.AddMulti("media-supported",
		ipp.StrValue(ipp.TagKeyword, "iso_a4_210x297mm"),
		ipp.StrValue(ipp.TagKeyword, "na_letter_8.5x11in"),
	)
	pg.Add("media-default", ipp.StrValue(ipp.TagKeyword, "iso_a4_210x297mm"))

	urfValues := make([]ipp.Value, len(mdnsadvert.URFTokens))
	for i, tok := range mdnsadvert.URFTokens {
		urfValues[i] = ipp.StrValue(ipp.TagKeyword, tok)
	}
	pg.AddMulti("urf-supported", urfValues...)

	msg := &ipp.Message{VersionMajor: 2, VersionMinor: 0, OpOrStatus: ipp.StatusOK, RequestID: requestID, Groups: []ipp.Group{op, pg}}
	return ipp.Encode(msg)
}

func handleValidateJob(requestID uint32) []byte {
	op := ipp.NewOperationGroup("utf-8", "en")
	msg := &ipp.Message{VersionMajor: 2, VersionMinor: 0, OpOrStatus: ipp.StatusOK, RequestID: requestID, Groups: []ipp.Group{op}}
	return ipp.Encode(msg)
}

func errorResponse(status uint16, requestID uint32) []byte {
	op := ipp.NewOperationGroup("utf-8", "en")
	msg := &ipp.Message{VersionMajor: 2, VersionMinor: 0, OpOrStatus: status, RequestID: requestID, Groups: []ipp.Group{op}}
	return ipp.Encode(msg)
}

func (s *Server) handlePrintJob(msg *ipp.Message, p printer.Printer, effectiveHost string) []byte {
	s.log.Info().Str("printer", p.ID).Msg("handling Print-Job")

	if len(msg.Payload) == 0 {
		s.log.Warn().Str("printer", p.ID).Msg("Print-Job with empty document body")
		return errorResponse(ipp.StatusClientErrorBadRequest, msg.RequestID)
	}

	opts := extractPrintOptions(msg)

	path := filepath.Join(os.TempDir(), fmt.Sprintf("airprint_%d_%d.pdf", time.Now().UnixMilli(), msg.RequestID))
	if err := writeDocument(path, msg.Payload); err != nil {
		s.log.Error().Err(err).Str("path", path).Msg("failed to spool print document")
		return errorResponse(ipp.StatusServerErrorInternal, msg.RequestID)
	}

	go s.submitInBackground(p, path, opts)

	op := ipp.NewOperationGroup("utf-8", "en")
	jg := ipp.Group{Tag: ipp.TagJobGroup}
	jg.Add("job-id", ipp.IntValue(ipp.TagInteger, int32(msg.RequestID)))
	jg.Add("job-uri", ipp.StrValue(ipp.TagURI, fmt.Sprintf("ipp://%s:%s/jobs/%d", effectiveHost, listenPort(s.addr), msg.RequestID)))
	jg.Add("job-state", ipp.IntValue(ipp.TagEnum, 9)) // completed
	jg.Add("job-state-reasons", ipp.StrValue(ipp.TagKeyword, "job-completed-successfully"))

	out := &ipp.Message{VersionMajor: 2, VersionMinor: 0, OpOrStatus: ipp.StatusOK, RequestID: msg.RequestID, Groups: []ipp.Group{op, jg}}
	return ipp.Encode(out)
}

func writeDocument(path string, payload []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(payload); err != nil {
		return err
	}
	return f.Sync()
}

// submitInBackground implements the fire-and-forget hand-off spec.md §4.2/§9
// describes: the IPP response has already gone out reporting job-state
// completed, this goroutine performs the real print asynchronously.
func (s *Server) submitInBackground(p printer.Printer, path string, opts printer.PrintOptions) {
	time.Sleep(500 * time.Millisecond)

	if _, err := os.Stat(path); err != nil {
		s.log.Warn().Str("path", path).Msg("spooled document vanished before submit")
		return
	}

	if s.sys == nil {
		s.log.Error().Str("path", path).Msg("no system printer configured, leaving file for diagnosis")
		return
	}

	if ok := s.sys.Submit(p, path, opts); ok {
		time.Sleep(3 * time.Second)
		if err := os.Remove(path); err != nil {
			s.log.Warn().Err(err).Str("path", path).Msg("failed to remove spooled document")
		}
		return
	}

	s.log.Error().Str("path", path).Msg("host print submission failed, keeping file for diagnosis")
}

func extractPrintOptions(msg *ipp.Message) printer.PrintOptions {
	opts := printer.DefaultPrintOptions()

	for _, g := range msg.Groups {
		for _, a := range g.Attributes {
			if len(a.Values) == 0 {
				continue
			}
			v := a.Values[0]
			switch a.Name {
			case "copies":
				opts.Copies = clampCopies(int(v.Int))
			case "sides":
				opts.Sides = v.Str
			case "print-color-mode", "color-mode":
				opts.ColorMode = v.Str
			case "media", "media-size":
				opts.Media = v.Str
			case "job-name":
				opts.JobName = v.Str
			}
		}
	}

	return opts
}

func clampCopies(n int) int {
	if n < 1 {
		return 1
	}
	if n > 99 {
		return 99
	}
	return n
}
