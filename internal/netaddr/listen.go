package netaddr

import (
	"context"
	"fmt"
	"net"
	"net/netip"
)

// BindError reports that the relay listener could not be created. It is the
// only runtime error that aborts the process.
type BindError struct {
	Endpoint netip.AddrPort
	Err      error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s: %v", e.Endpoint, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// Listen binds a TCP listener on ep.
func Listen(ctx context.Context, ep netip.AddrPort) (net.Listener, error) {
	network := "tcp4"
	if ep.Addr().Is6() {
		network = "tcp6"
	}
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, network, ep.String())
	if err != nil {
		return nil, &BindError{Endpoint: ep, Err: err}
	}
	return ln, nil
}
