// Package netaddr parses the relay's listen endpoint and binds its TCP
// listener.
package netaddr

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
)

var ErrInvalidEndpoint = errors.New("invalid endpoint")

// ParseEndpoint parses an IP endpoint of the form "ip:port" or "[ipv6]:port".
// Host names are rejected: the relay binds to a literal address only.
// IPv4-mapped IPv6 addresses are unmapped so they bind as IPv4.
func ParseEndpoint(s string) (netip.AddrPort, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return netip.AddrPort{}, fmt.Errorf("%w: empty", ErrInvalidEndpoint)
	}
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		// name the offending part when the shape is right but the host is not an IP
		if host, _, splitErr := net.SplitHostPort(s); splitErr == nil && host != "" {
			if _, addrErr := netip.ParseAddr(host); addrErr != nil {
				return netip.AddrPort{}, fmt.Errorf("%w: %q is not an IP address", ErrInvalidEndpoint, host)
			}
		}
		return netip.AddrPort{}, fmt.Errorf("%w: %q: expected ip:port", ErrInvalidEndpoint, s)
	}
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port()), nil
}
