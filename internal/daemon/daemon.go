// Package daemon runs the headless poll loop that stands in for spec.md
// §6's UI shell: it watches PrinterDirectory on an interval and converges
// the shared set by calling the facade's share/unshare operations, the way
// the teacher's daemon polled CUPS and rewrote Avahi service files.
package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/cyra/airprint-everywhere/internal/facade"
	"github.com/cyra/airprint-everywhere/internal/printer"
)

// Config holds the daemon's polling and filtering behaviour.
type Config struct {
	PollInterval time.Duration
	SharedOnly   bool
	ExcludeList  []string
}

// DefaultConfig mirrors the teacher's DefaultConfig defaults where the
// concern still applies.
func DefaultConfig() Config {
	return Config{
		PollInterval: 30 * time.Second,
		SharedOnly:   true,
		ExcludeList:  nil,
	}
}

// Daemon drives the facade from a poll loop and OS signals.
type Daemon struct {
	config Config
	facade *facade.Facade
	log    zerolog.Logger
}

// New constructs a Daemon bound to an already-wired facade.
func New(config Config, f *facade.Facade, log zerolog.Logger) *Daemon {
	return &Daemon{
		config: config,
		facade: f,
		log:    log.With().Str("component", "daemon").Logger(),
	}
}

// Run blocks until ctx is cancelled or a termination signal arrives,
// converging the shared-printer set on every tick and on SIGHUP.
func (d *Daemon) Run(ctx context.Context) error {
	d.log.Info().
		Dur("poll_interval", d.config.PollInterval).
		Bool("shared_only", d.config.SharedOnly).
		Strs("exclude", d.config.ExcludeList).
		Msg("starting AirPrint bridge daemon")

	if err := d.sync(); err != nil {
		d.log.Error().Err(err).Msg("initial sync failed")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.log.Info().Msg("context cancelled, shutting down")
			return d.shutdown()

		case sig := <-sigChan:
			switch sig {
			case syscall.SIGHUP:
				d.log.Info().Msg("received SIGHUP, reloading")
				if err := d.sync(); err != nil {
					d.log.Error().Err(err).Msg("reload failed")
				}
			case syscall.SIGTERM, syscall.SIGINT:
				d.log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
				return d.shutdown()
			}

		case <-ticker.C:
			if err := d.sync(); err != nil {
				d.log.Error().Err(err).Msg("printer sync failed")
			}
		}
	}
}

// sync fetches the host's current printers and converges the shared set:
// every eligible printer not yet shared is shared, and every shared printer
// that has gone offline or left eligibility is stopped.
func (d *Daemon) sync() error {
	hostPrinters := d.facade.GetPrinters()
	d.log.Debug().Int("count", len(hostPrinters)).Msg("polled printer directory")

	eligible := make(map[string]printer.Printer, len(hostPrinters))
	for _, p := range hostPrinters {
		if d.isExcluded(p.ID) {
			continue
		}
		if d.config.SharedOnly && p.Status != printer.StatusOnline {
			continue
		}
		eligible[p.ID] = p
	}

	shared := d.facade.GetSharedPrinters()
	sharedIDs := make(map[string]bool, len(shared))
	for _, p := range shared {
		sharedIDs[p.ID] = true
		if _, ok := eligible[p.ID]; !ok {
			if errStr := d.facade.StopPrinter(p.ID); errStr != "" {
				d.log.Error().Str("printer_id", p.ID).Str("error", errStr).Msg("failed to stop printer")
			} else {
				d.log.Info().Str("printer_id", p.ID).Msg("stopped sharing printer")
			}
		}
	}

	for id := range eligible {
		if sharedIDs[id] {
			continue
		}
		if _, errStr := d.facade.SharePrinter(id); errStr != "" {
			d.log.Error().Str("printer_id", id).Str("error", errStr).Msg("failed to share printer")
		} else {
			d.log.Info().Str("printer_id", id).Msg("started sharing printer")
		}
	}

	return nil
}

func (d *Daemon) isExcluded(id string) bool {
	for _, excluded := range d.config.ExcludeList {
		if excluded == id {
			return true
		}
	}
	return false
}

// shutdown stops every still-shared printer so no stale IPP/mDNS state
// outlives the process.
func (d *Daemon) shutdown() error {
	for _, p := range d.facade.GetSharedPrinters() {
		if errStr := d.facade.StopPrinter(p.ID); errStr != "" {
			d.log.Error().Str("printer_id", p.ID).Str("error", errStr).Msg("failed to stop printer during shutdown")
		}
	}
	d.log.Info().Msg("shutdown complete")
	return nil
}
