// Package privacy truncates network identifiers before they reach logs.
package privacy

import (
	"net"
	"net/netip"
)

// AnonymizeIP masks the host portion of an address so access logs never carry
// a full client IP: IPv4 keeps its /24, IPv6 its /48.
//
// Accepts bare addresses or host:port pairs. Returns "unknown" for empty input
// and "invalid" for anything unparseable.
func AnonymizeIP(raw string) string {
	if raw == "" || raw == "unknown" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(raw); err == nil {
		raw = host
	}

	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return "invalid"
	}
	addr = addr.Unmap()

	bits := 48
	if addr.Is4() {
		bits = 24
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return "invalid"
	}
	return prefix.Addr().String()
}
