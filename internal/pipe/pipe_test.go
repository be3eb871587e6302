package pipe

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

func blockingDial(ctx context.Context, _ string) (net.Conn, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestConnectOutcomes(t *testing.T) {
	refused := errors.New("connection refused")

	tests := []struct {
		name    string
		dial    DialFunc
		cancel  bool
		want    error
		wantNil bool
	}{
		{
			name: "success",
			dial: func(context.Context, string) (net.Conn, error) {
				a, b := net.Pipe()
				b.Close()
				return a, nil
			},
			wantNil: true,
		},
		{
			name: "failure",
			dial: func(context.Context, string) (net.Conn, error) { return nil, refused },
			want: ErrConnectFailed,
		},
		{
			name: "timeout",
			dial: blockingDial,
			want: ErrConnectTimeout,
		},
		{
			name:   "cancelled",
			dial:   blockingDial,
			cancel: true,
			want:   ErrCancelled,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if tt.cancel {
				time.AfterFunc(20*time.Millisecond, cancel)
			}
			c := &Connector{Dial: tt.dial}
			timeout := 50 * time.Millisecond
			if tt.cancel {
				timeout = 5 * time.Second
			}

			conn, err := c.Connect(ctx, "demo", timeout)
			if tt.wantNil {
				if err != nil {
					t.Fatalf("Connect() error = %v", err)
				}
				conn.Close()
				return
			}
			if conn != nil {
				t.Fatal("Connect() returned a connection alongside an error")
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("Connect() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestConnectWrapsCause(t *testing.T) {
	cause := errors.New("no such file or directory")
	c := &Connector{Dial: func(context.Context, string) (net.Conn, error) { return nil, cause }}
	_, err := c.Connect(context.Background(), "demo", time.Second)
	if !errors.Is(err, cause) {
		t.Fatalf("error %v does not wrap its cause", err)
	}
}

func TestConnectSingleAttempt(t *testing.T) {
	attempts := 0
	c := &Connector{Dial: func(context.Context, string) (net.Conn, error) {
		attempts++
		return nil, errors.New("refused")
	}}
	_, _ = c.Connect(context.Background(), "demo", time.Second)
	if attempts != 1 {
		t.Fatalf("dial attempts = %d, want 1", attempts)
	}
}

func TestConnectPassesResolvedPath(t *testing.T) {
	var got string
	c := &Connector{Dial: func(_ context.Context, path string) (net.Conn, error) {
		got = path
		return nil, errors.New("refused")
	}}
	_, _ = c.Connect(context.Background(), "demo", time.Second)
	if got != Path("demo") {
		t.Fatalf("dialed %q, want %q", got, Path("demo"))
	}
}
