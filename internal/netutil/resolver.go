// Package netutil resolves and validates the local network address and
// hostname used when advertising a shared printer, per spec.md §4.4.
package netutil

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrNoRoutableAddress is returned when the only address the host knows
// about is link-local (no connected LAN).
var ErrNoRoutableAddress = errors.New("no routable (non-link-local) address available; check that a LAN is connected")

// ErrInvalidHostname is returned by NormalizeHostname for names that cannot
// be turned into a valid ".local." hostname.
var ErrInvalidHostname = errors.New("hostname must be a non-empty label ending in .local.")

// IsLinkLocal classifies ip per spec.md §3/§4.4: IPv4 169.254.0.0/16, or
// IPv6 fe80::/10 (the first 16 bits match 0xfe80 after masking with
// 0xffc0).
func IsLinkLocal(ip net.IP) bool {
	if v4 := ip.To4(); v4 != nil {
		return v4[0] == 169 && v4[1] == 254
	}
	if v6 := ip.To16(); v6 != nil {
		seg0 := uint16(v6[0])<<8 | uint16(v6[1])
		return seg0&0xffc0 == 0xfe80
	}
	return false
}

// ResolveAdvertiseAddr picks a single IP address suitable for mDNS
// advertisement: the primary outbound, non-link-local address of the host.
// It queries the OS via a UDP "connect" (no packets are actually sent) to
// learn which local address the kernel would route a LAN-bound packet from,
// then falls back to scanning interface addresses if that fails.
func ResolveAdvertiseAddr() (net.IP, error) {
	ip, err := outboundAddr()
	if err == nil && ip != nil && !IsLinkLocal(ip) && !ip.IsLoopback() {
		return ip, nil
	}

	ip, ferr := firstUsableInterfaceAddr()
	if ferr != nil {
		if err == nil {
			err = ferr
		}
		return nil, fmt.Errorf("resolving advertise address: %w", err)
	}
	if IsLinkLocal(ip) {
		return nil, ErrNoRoutableAddress
	}
	return ip, nil
}

func outboundAddr() (net.IP, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return nil, errors.New("unexpected local address type")
	}
	return addr.IP, nil
}

func firstUsableInterfaceAddr() (net.IP, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}

	var fallbackLinkLocal net.IP
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		ip := ipnet.IP
		if v4 := ip.To4(); v4 != nil {
			ip = v4
		}
		if IsLinkLocal(ip) {
			if fallbackLinkLocal == nil {
				fallbackLinkLocal = ip
			}
			continue
		}
		return ip, nil
	}

	if fallbackLinkLocal != nil {
		return fallbackLinkLocal, nil
	}
	return nil, errors.New("no usable network interface address found")
}

// NormalizeHostname accepts "foo.local" -> "foo.local.", "foo.local." ->
// unchanged, and rejects anything without a ".local"/".local." suffix (e.g.
// a bare "foo") with ErrInvalidHostname.
func NormalizeHostname(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrInvalidHostname
	}

	trimmed := strings.TrimSuffix(s, ".")
	if !strings.HasSuffix(trimmed, ".local") {
		return "", ErrInvalidHostname
	}
	if trimmed == ".local" {
		return "", ErrInvalidHostname
	}

	return trimmed + ".", nil
}
