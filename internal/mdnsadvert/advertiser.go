// Package mdnsadvert owns the process's multicast-DNS daemon and the
// AirPrint `_ipp._tcp.local.` service records it advertises, per spec.md
// §4.3. It wraps github.com/hashicorp/mdns the way
// SoraKasvgano-Cups-golang's dnssd_advertiser.go wraps it: a custom DNS
// zone backed by a mutex-guarded service list, which is rebuilt from the
// current registrations on every change and on each 60s heartbeat renewal.
package mdnsadvert

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/mdns"
	"github.com/miekg/dns"
	"github.com/rs/zerolog"

	"github.com/cyra/airprint-everywhere/internal/netutil"
	"github.com/cyra/airprint-everywhere/internal/printer"
)

// ErrInvalidHostname mirrors spec.md §4.3's rejection of hostnames not
// ending in ".local.".
var ErrInvalidHostname = errors.New("mdnsadvert: hostname must end in .local.")

// ErrNoRoutableAddress mirrors spec.md §4.3/§4.4's rejection of link-local
// advertise addresses.
var ErrNoRoutableAddress = netutil.ErrNoRoutableAddress

// ErrInvalidPort is returned when port <= 0.
var ErrInvalidPort = errors.New("mdnsadvert: port must be > 0")

const serviceType = "_ipp._tcp"

type registration struct {
	printer      printer.Printer
	hostname     string
	ip           net.IP
	port         int
	instanceUUID uuid.UUID
	instanceName string
	fqdn         string
}

type zone struct {
	mu       sync.RWMutex
	services []*mdns.MDNSService
}

func (z *zone) set(services []*mdns.MDNSService) {
	z.mu.Lock()
	z.services = services
	z.mu.Unlock()
}

func (z *zone) Records(q dns.Question) []dns.RR {
	z.mu.RLock()
	services := append([]*mdns.MDNSService(nil), z.services...)
	z.mu.RUnlock()

	var out []dns.RR
	for _, svc := range services {
		out = append(out, svc.Records(q)...)
	}
	return out
}

// Advertiser owns a single mDNS daemon for the process and the set of
// printers currently registered against it.
type Advertiser struct {
	log zerolog.Logger

	mu      sync.Mutex
	srv     *mdns.Server
	zone    *zone
	regs    map[string]*registration // keyed by printer ID
	running atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewAdvertiser constructs an idle Advertiser. The mDNS daemon itself is
// started lazily on the first Advertise call and torn down by Close.
func NewAdvertiser(log zerolog.Logger) *Advertiser {
	return &Advertiser{
		log:  log.With().Str("component", "mdns-advertiser").Logger(),
		regs: make(map[string]*registration),
	}
}

func (a *Advertiser) ensureStarted() error {
	if a.srv != nil {
		return nil
	}
	z := &zone{}
	srv, err := mdns.NewServer(&mdns.Config{Zone: z})
	if err != nil {
		return fmt.Errorf("mdnsadvert: starting daemon: %w", err)
	}
	a.srv = srv
	a.zone = z
	a.done = make(chan struct{})
	a.running.Store(true)
	a.wg.Add(1)
	go a.heartbeatLoop()
	return nil
}

// Advertise registers p's `_ipp._tcp.local.` service. TXT includes
// universal=true per the spec's chosen Open-Question resolution (no
// separate sub-type registration; see DESIGN.md).
func (a *Advertiser) Advertise(p printer.Printer, hostname string, ip net.IP, port int) error {
	if !strings.HasSuffix(hostname, ".local.") {
		return ErrInvalidHostname
	}
	if netutil.IsLinkLocal(ip) {
		return ErrNoRoutableAddress
	}
	if port <= 0 {
		return ErrInvalidPort
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.ensureStarted(); err != nil {
		return err
	}

	instanceUUID := uuid.New()
	instanceName := sanitizeInstanceName(p.Name)

	// Build once up front so a malformed record is rejected before mutating
	// state; refreshLocked rebuilds it again below from a.regs, which keeps
	// the zone's service list derived from one source of truth.
	if _, err := mdns.NewMDNSService(instanceName, serviceType, "local.", hostname, port, []net.IP{ip}, NewTXTRecords(p, instanceUUID).Pairs()); err != nil {
		return fmt.Errorf("mdnsadvert: building service record: %w", err)
	}

	a.regs[p.ID] = &registration{
		printer:      p,
		hostname:     hostname,
		ip:           ip,
		port:         port,
		instanceUUID: instanceUUID,
		instanceName: instanceName,
		fqdn:         fmt.Sprintf("%s.%s.local.", instanceName, serviceType),
	}
	a.refreshLocked()

	a.log.Info().Str("printer", p.ID).Str("instance", instanceName).Str("ip", ip.String()).Msg("advertising printer")
	return nil
}

// Withdraw removes printerID's registration from the advertised set.
func (a *Advertiser) Withdraw(printerID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.regs[printerID]; !ok {
		return
	}
	delete(a.regs, printerID)
	a.refreshLocked()
	a.log.Info().Str("printer", printerID).Msg("withdrew printer advertisement")
}

// refreshLocked rebuilds the zone's service list from the current
// registrations. Must be called with a.mu held.
func (a *Advertiser) refreshLocked() {
	if a.zone == nil {
		return
	}
	services := make([]*mdns.MDNSService, 0, len(a.regs))
	for _, r := range a.regs {
		txt := NewTXTRecords(r.printer, r.instanceUUID)
		svc, err := mdns.NewMDNSService(r.instanceName, serviceType, "local.", r.hostname, r.port, []net.IP{r.ip}, txt.Pairs())
		if err != nil {
			a.log.Error().Err(err).Str("printer", r.printer.ID).Msg("failed to rebuild service record")
			continue
		}
		services = append(services, svc)
	}
	a.zone.set(services)
}

// heartbeatLoop wakes every 10s; every 60s it re-registers every active
// printer (unregister+register, implemented here as a zone rebuild) to
// defend against stale caches on consumer routers, per spec.md §4.3.
func (a *Advertiser) heartbeatLoop() {
	defer a.wg.Done()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	const renewEvery = 6 // 6 * 10s = 60s
	tick := 0

	for {
		select {
		case <-ticker.C:
			tick++
			if tick >= renewEvery {
				tick = 0
				a.renew()
			}
		case <-a.done:
			return
		}
	}
}

func (a *Advertiser) renew() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.regs) == 0 {
		return
	}
	a.log.Debug().Int("count", len(a.regs)).Msg("renewing mDNS registrations")
	a.refreshLocked()
}

// Close withdraws every registration and stops the daemon. Safe to call on
// an Advertiser that was never started.
func (a *Advertiser) Close() error {
	a.mu.Lock()
	if a.srv == nil {
		a.mu.Unlock()
		return nil
	}
	a.regs = make(map[string]*registration)
	if a.zone != nil {
		a.zone.set(nil)
	}
	srv := a.srv
	done := a.done
	a.srv = nil
	a.running.Store(false)
	a.mu.Unlock()

	close(done)
	a.wg.Wait()
	return srv.Shutdown()
}

// Running reports whether the mDNS daemon is currently active.
func (a *Advertiser) Running() bool {
	return a.running.Load()
}
