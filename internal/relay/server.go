// Package relay bridges one TCP connection at a time to a local pipe.
//
// [Server.Run] accepts a connection, opens a fresh pipe connection for it,
// and runs two [Pump]s (pipe to socket, socket to pipe) concurrently. When
// either pump finishes the other is cancelled, both are awaited, the pipe
// and then the socket are closed, and the server goes back to accepting.
// Only one connection is served at a time; further clients queue in the
// listen backlog.
//
// Failures during accept, pipe connect or relaying end the current
// iteration only. Cancelling the context passed to Run closes the listener,
// cancels any relay in flight, and makes Run return once it has torn down.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/matst80/tcp2np/internal/obs"
	"github.com/matst80/tcp2np/internal/pipe"
)

// Config holds the relay tunables. It is read-only once passed to NewServer.
type Config struct {
	PipeName       string
	ConnectTimeout time.Duration // zero means pipe.DefaultTimeout
	BufferSize     int           // zero means DefaultBufferSize
}

// Connector opens the pipe side of a relay.
type Connector interface {
	Connect(ctx context.Context, name string, timeout time.Duration) (net.Conn, error)
}

// Session describes one accepted connection.
type Session struct {
	ID      string
	Remote  string
	Pipe    string
	Started time.Time
}

// Result is the outcome of one iteration.
type Result struct {
	PipeConnected bool
	ToSocket      int64
	ToPipe        int64
	Err           error // nil for EOF, peer disconnect and cancellation
	Ended         time.Time
}

// Tracker observes the coordinator. Calls are made from the Run goroutine
// and must not block for long.
type Tracker interface {
	PhaseChanged(p Phase)
	SessionOpened(s Session)
	SessionClosed(s Session, r Result)
}

type Option func(*Server)

// WithConnector replaces the native pipe connector.
func WithConnector(c Connector) Option { return func(s *Server) { s.connector = c } }

func WithTracker(t Tracker) Option { return func(s *Server) { s.tracker = t } }

func WithLogger(l *obs.Logger) Option { return func(s *Server) { s.log = l } }

// WithAdmission installs a check run on every accepted connection. A
// connection it refuses is closed before any pipe is opened.
func WithAdmission(allow func(remote net.Addr) bool) Option {
	return func(s *Server) { s.admit = allow }
}

type Server struct {
	cfg       Config
	listener  net.Listener
	connector Connector
	tracker   Tracker
	admit     func(net.Addr) bool
	log       *obs.Logger
	phase     atomic.Int32
}

// NewServer returns a server relaying connections from ln. Run takes
// ownership of ln and closes it on return.
func NewServer(ln net.Listener, cfg Config, opts ...Option) *Server {
	s := &Server{cfg: cfg, listener: ln, connector: &pipe.Connector{}}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Addr returns the listener address.
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// Phase returns the current coordinator phase.
func (s *Server) Phase() Phase { return Phase(s.phase.Load()) }

func (s *Server) setPhase(p Phase) {
	s.phase.Store(int32(p))
	if s.tracker != nil {
		s.tracker.PhaseChanged(p)
	}
}

// Run serves connections until ctx is cancelled, then returns nil after the
// in-flight relay, if any, has been torn down. It returns an error wrapping
// ErrAccept only if the listener fails for a reason other than ctx.
func (s *Server) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = s.listener.Close() })
	defer stop()
	defer s.listener.Close()

	for {
		s.setPhase(PhaseIdle)
		if ctx.Err() != nil {
			return nil
		}
		s.setPhase(PhaseAccepting)
		s.log.SocketConnectionWaiting(s.listener.Addr())
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("%w: %w", ErrAccept, err)
			}
			obs.ErrorsTotal.WithLabelValues("accept").Inc()
			s.log.AcceptFailed(err)
			continue
		}
		s.serve(ctx, conn)
	}
}

// serve runs one iteration for an accepted connection and closes it.
func (s *Server) serve(ctx context.Context, conn net.Conn) {
	obs.ConnectionsAccepted.Inc()
	if s.admit != nil && !s.admit(conn.RemoteAddr()) {
		obs.ConnectionsRejected.Inc()
		s.log.ConnectionRejected(conn.RemoteAddr())
		_ = conn.Close()
		return
	}

	sess := Session{
		ID:      uuid.NewString(),
		Remote:  conn.RemoteAddr().String(),
		Pipe:    s.cfg.PipeName,
		Started: time.Now(),
	}
	log := s.log.With(obs.Fields{"session": sess.ID})
	log.SocketConnectionAccepted(conn.RemoteAddr())
	if s.tracker != nil {
		s.tracker.SessionOpened(sess)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	res := s.relay(ctx, cancel, conn, log)
	s.setPhase(PhaseClosed)

	res.Ended = time.Now()
	if s.tracker != nil {
		s.tracker.SessionClosed(sess, res)
	}
}

func (s *Server) relay(ctx context.Context, cancel context.CancelFunc, conn net.Conn, log *obs.Logger) Result {
	defer conn.Close()

	s.setPhase(PhasePipeConnecting)
	start := time.Now()
	p, err := s.connector.Connect(ctx, s.cfg.PipeName, s.cfg.ConnectTimeout)
	if err != nil {
		if errors.Is(err, pipe.ErrCancelled) {
			return Result{}
		}
		switch {
		case errors.Is(err, pipe.ErrConnectTimeout):
			obs.ErrorsTotal.WithLabelValues("pipe_timeout").Inc()
		default:
			obs.ErrorsTotal.WithLabelValues("pipe_connect").Inc()
		}
		log.PipeConnectFailed(s.cfg.PipeName, err)
		return Result{Err: err}
	}
	defer p.Close()
	took := time.Since(start)
	obs.PipeConnectSeconds.Observe(took.Seconds())
	log.PipeConnected(s.cfg.PipeName, took)

	s.setPhase(PhaseRelaying)
	obs.ActiveRelays.Inc()
	defer obs.ActiveRelays.Dec()

	res := Result{PipeConnected: true}
	p2s := &Pump{Direction: PipeToSocket, BufferSize: s.cfg.BufferSize, Logger: log}
	s2p := &Pump{Direction: SocketToPipe, BufferSize: s.cfg.BufferSize, Logger: log}

	done := make(chan struct{}, 2)
	var g errgroup.Group
	g.Go(func() error {
		defer func() { done <- struct{}{} }()
		n, err := p2s.Run(ctx, p, conn)
		res.ToSocket = n
		return err
	})
	g.Go(func() error {
		defer func() { done <- struct{}{} }()
		n, err := s2p.Run(ctx, conn, p)
		res.ToPipe = n
		return err
	})

	<-done
	s.setPhase(PhaseDraining)
	cancel()
	if err := g.Wait(); err != nil && !errors.Is(err, ErrCancelled) {
		res.Err = err
	}

	took = time.Since(start)
	obs.RelaysCompletedTotal.Inc()
	obs.RelayDurationSeconds.Observe(took.Seconds())
	log.RelayCompleted(res.ToSocket, res.ToPipe, took)
	return res
}
