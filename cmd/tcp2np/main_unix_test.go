//go:build !windows

package main

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/netip"
	"path/filepath"
	"testing"
	"time"
)

func freePort(t *testing.T) netip.AddrPort {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ap := netip.MustParseAddrPort(ln.Addr().String())
	_ = ln.Close()
	return ap
}

func dialRetry(t *testing.T, addr string) net.Conn {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		conn, err := net.Dial("tcp", addr)
		if err == nil {
			return conn
		}
		if time.Now().After(deadline) {
			t.Fatalf("dial %s: %v", addr, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServeRelaysToUnixPipe(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "pipe.sock")
	pl, err := net.Listen("unix", sock)
	if err != nil {
		t.Fatalf("listen unix: %v", err)
	}
	defer pl.Close()

	// pipe server: answer each "hello" with "world" and hang up
	go func() {
		for {
			conn, err := pl.Accept()
			if err != nil {
				return
			}
			buf := make([]byte, 5)
			if _, err := io.ReadFull(conn, buf); err == nil && string(buf) == "hello" {
				_, _ = conn.Write([]byte("world"))
			}
			_ = conn.Close()
		}
	}()

	cfg := defaultConfig()
	cfg.Endpoint = freePort(t)
	cfg.PipeName = sock

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int, 1)
	go func() { done <- serve(ctx, &cfg, &bytes.Buffer{}) }()

	for i := 0; i < 2; i++ {
		conn := dialRetry(t, cfg.Endpoint.String())
		_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
		if _, err := conn.Write([]byte("hello")); err != nil {
			t.Fatalf("write: %v", err)
		}
		got, err := io.ReadAll(conn)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if string(got) != "world" {
			t.Fatalf("round %d: got %q", i, got)
		}
		_ = conn.Close()
	}

	cancel()
	select {
	case code := <-done:
		if code != 0 {
			t.Fatalf("exit code = %d", code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}
