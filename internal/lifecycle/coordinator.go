// Package lifecycle owns the shared-printer map and the two servers it
// binds together: the IPP listener and the mDNS advertiser. See spec.md
// §4.5.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cyra/airprint-everywhere/internal/ippserver"
	"github.com/cyra/airprint-everywhere/internal/mdnsadvert"
	"github.com/cyra/airprint-everywhere/internal/netutil"
	"github.com/cyra/airprint-everywhere/internal/printer"
)

// Sentinel errors per spec.md §7. mDNS/resolver errors are wrapped, not
// replaced, so callers can still unwrap to the underlying cause.
var (
	ErrAlreadyShared   = errors.New("printer is already shared")
	ErrNotShared       = errors.New("printer is not currently shared")
	ErrPrinterNotFound = errors.New("printer not found")
	ErrIppStartFailed  = errors.New("failed to start IPP server")
	ErrMdnsStartFailed = errors.New("failed to start mDNS advertisement")
)

// SharedPrinterEntry is the coordinator's per-printer record, per spec.md §3.
type SharedPrinterEntry struct {
	Printer            printer.Printer
	Hostname           string
	AdvertisedIP       string
	Port               int
	RegisteredInstance string
}

// Coordinator keeps the map of currently-shared printers and owns the one
// IPP server and one mDNS advertiser for the process, starting them on
// first share and tearing them down on last stop.
type Coordinator struct {
	mu       sync.Mutex
	entries  map[string]SharedPrinterEntry
	ipp      *ippserver.Server
	advert   *mdnsadvert.Advertiser
	addr     string // IPP listen address, e.g. "0.0.0.0:631"
	port     int
	hostname string
	sys      ippserver.SystemPrinter
	log      zerolog.Logger
}

// New constructs an idle Coordinator. addr is the IPP listen address;
// hostname must already be normalised (netutil.NormalizeHostname) to end
// in ".local.".
func New(addr string, port int, hostname string, sys ippserver.SystemPrinter, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		entries:  make(map[string]SharedPrinterEntry),
		addr:     addr,
		port:     port,
		hostname: hostname,
		sys:      sys,
		log:      log.With().Str("component", "lifecycle").Logger(),
	}
}

// Share starts the required servers (idempotently) and registers p,
// returning p.ID on success. Per spec.md §4.5 this is not idempotent: a
// second Share of the same printer ID returns ErrAlreadyShared.
func (c *Coordinator) Share(p printer.Printer) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[p.ID]; ok {
		return "", ErrAlreadyShared
	}

	if c.ipp == nil {
		srv := ippserver.NewServer(c.addr, c.hostname, c.sys, c.log)
		if err := srv.Start(); err != nil {
			return "", fmt.Errorf("%w: %v", ErrIppStartFailed, err)
		}
		c.ipp = srv
	}

	ip, err := netutil.ResolveAdvertiseAddr()
	if err != nil {
		c.teardownIfEmpty()
		return "", err
	}

	if c.advert == nil {
		c.advert = mdnsadvert.NewAdvertiser(c.log)
	}
	if err := c.advert.Advertise(p, c.hostname, ip, c.port); err != nil {
		// Per spec.md §4.5: on advertise failure, do NOT stop the IPP
		// server if other entries exist, and do not insert this entry.
		c.teardownIfEmpty()
		return "", fmt.Errorf("%w: %v", ErrMdnsStartFailed, err)
	}

	c.ipp.Register(p)
	c.entries[p.ID] = SharedPrinterEntry{
		Printer:            p,
		Hostname:           c.hostname,
		AdvertisedIP:       ip.String(),
		Port:               c.port,
		RegisteredInstance: p.ID,
	}

	return p.ID, nil
}

// Stop withdraws printerID's mDNS registration and removes it from the
// shared set. When the set becomes empty, the IPP server is stopped and
// the mDNS daemon dropped, with a short sleep to let the OS release the
// port, per spec.md §4.5.
func (c *Coordinator) Stop(printerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[printerID]; !ok {
		return ErrNotShared
	}
	delete(c.entries, printerID)

	if c.ipp != nil {
		c.ipp.Unregister(printerID)
	}
	if c.advert != nil {
		c.advert.Withdraw(printerID)
	}

	if len(c.entries) == 0 {
		c.teardownIfEmpty()
		time.Sleep(100 * time.Millisecond)
	}

	return nil
}

// teardownIfEmpty stops the IPP server and mDNS advertiser when no entry is
// registered. Callers must hold c.mu. It undoes the freshly-started servers
// when Share fails before an entry is inserted, preserving the invariant
// that the IPP server runs iff at least one entry exists.
func (c *Coordinator) teardownIfEmpty() {
	if len(c.entries) != 0 {
		return
	}
	if c.ipp != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := c.ipp.Stop(ctx); err != nil {
			c.log.Warn().Err(err).Msg("error stopping IPP server")
		}
		cancel()
		c.ipp = nil
	}
	if c.advert != nil {
		if err := c.advert.Close(); err != nil {
			c.log.Warn().Err(err).Msg("error closing mDNS advertiser")
		}
		c.advert = nil
	}
}

// ListShared returns a snapshot of every currently shared printer.
func (c *Coordinator) ListShared() []printer.Printer {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]printer.Printer, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.Printer)
	}
	return out
}

// IsShared reports whether printerID currently has an entry.
func (c *Coordinator) IsShared(printerID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[printerID]
	return ok
}
