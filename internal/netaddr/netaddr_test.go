package netaddr

import (
	"context"
	"errors"
	"net/netip"
	"testing"
)

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "ipv4", in: "127.0.0.1:9000", want: "127.0.0.1:9000"},
		{name: "any", in: "0.0.0.0:0", want: "0.0.0.0:0"},
		{name: "ipv6", in: "[::1]:9000", want: "[::1]:9000"},
		{name: "mapped", in: "[::ffff:127.0.0.1]:80", want: "127.0.0.1:80"},
		{name: "trimmed", in: "  10.0.0.1:22 ", want: "10.0.0.1:22"},
		{name: "empty", in: "", wantErr: true},
		{name: "no port", in: "127.0.0.1", wantErr: true},
		{name: "hostname", in: "localhost:9000", wantErr: true},
		{name: "bad port", in: "127.0.0.1:http", wantErr: true},
		{name: "port range", in: "127.0.0.1:70000", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEndpoint(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidEndpoint) {
					t.Fatalf("ParseEndpoint(%q) error = %v, want ErrInvalidEndpoint", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseEndpoint(%q) unexpected error: %v", tt.in, err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseEndpoint(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestListenAddressInUse(t *testing.T) {
	first, err := Listen(context.Background(), netip.MustParseAddrPort("127.0.0.1:0"))
	if err != nil {
		t.Fatalf("first listen: %v", err)
	}
	defer first.Close()

	taken := netip.MustParseAddrPort(first.Addr().String())
	second, err := Listen(context.Background(), taken)
	if err == nil {
		second.Close()
		t.Fatal("second listen on the same address succeeded")
	}
	var bindErr *BindError
	if !errors.As(err, &bindErr) {
		t.Fatalf("error %v is not a *BindError", err)
	}
	if bindErr.Endpoint != taken {
		t.Errorf("BindError.Endpoint = %s, want %s", bindErr.Endpoint, taken)
	}
}
