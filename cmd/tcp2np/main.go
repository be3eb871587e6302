// Tcp2np relays a TCP listener to a local named pipe, one connection at a
// time, so a process that only speaks the pipe transport can be reached over
// the network.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/matst80/tcp2np/internal/netaddr"
	"github.com/matst80/tcp2np/internal/obs"
	"github.com/matst80/tcp2np/internal/ratelimit"
	"github.com/matst80/tcp2np/internal/relay"
	"github.com/matst80/tcp2np/internal/state"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := parseArgs(args, stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		printErrors(stderr, err)
		return 1
	}
	obs.Configure(obs.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: stdout})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, cfg, stderr)
}

// printErrors writes one line per joined error.
func printErrors(w io.Writer, err error) {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			fmt.Fprintln(w, e)
		}
		return
	}
	fmt.Fprintln(w, err)
}

// serve binds the listener and relays until ctx is done. Only startup
// failures produce a non-zero exit code.
func serve(ctx context.Context, cfg *Config, stderr io.Writer) int {
	obs.Info("server.start", obs.Fields{"listen": cfg.Endpoint.String(), "pipe": cfg.PipeName, "metrics": cfg.MetricsAddr})

	ln, err := netaddr.Listen(ctx, cfg.Endpoint)
	if err != nil {
		obs.Error("listen", obs.Fields{"err": err.Error(), "addr": cfg.Endpoint.String()})
		fmt.Fprintln(stderr, err)
		return 1
	}

	store, err := state.New(state.Options{RedisAddr: cfg.Redis.Addr, RedisPassword: cfg.Redis.Password, RedisDB: cfg.Redis.DB})
	if err != nil {
		_ = ln.Close()
		obs.Error("state.backend", obs.Fields{"err": err.Error()})
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer store.Close()

	if cfg.MetricsAddr != "" {
		go startMetricsServer(ctx, cfg.MetricsAddr, store)
	}

	opts := []relay.Option{relay.WithTracker(store)}
	limiter := ratelimit.NewRateLimiter(cfg.Admission.Rate, cfg.Admission.PeerRate, cfg.Admission.Burst)
	if limiter.Enabled() {
		opts = append(opts, relay.WithAdmission(limiter.AllowConnection))
		go runPruneLoop(ctx, limiter, time.Minute)
	}

	srv := relay.NewServer(ln, relay.Config{
		PipeName:       cfg.PipeName,
		ConnectTimeout: cfg.ConnectTimeout,
		BufferSize:     cfg.BufferSize,
	}, opts...)

	store.SetReady(true)
	obs.Info("server.ready", obs.Fields{"addr": srv.Addr().String()})

	err = srv.Run(ctx)
	store.SetClosing(true)
	if err != nil {
		// the listener died on its own; nothing left to serve
		obs.Error("server.run", obs.Fields{"err": err.Error()})
		return 1
	}
	obs.Info("server.shutdown.complete", obs.Fields{})
	return 0
}

func runPruneLoop(ctx context.Context, limiter *ratelimit.RateLimiter, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := limiter.Prune(10 * interval); n > 0 {
				obs.Debug("admission.prune", obs.Fields{"removed": n})
			}
		}
	}
}
