package relay

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/matst80/tcp2np/internal/obs"
)

// Direction names the fixed source and destination of a pump.
type Direction string

const (
	PipeToSocket Direction = "pipe_to_socket"
	SocketToPipe Direction = "socket_to_pipe"
)

// Scope is the short log tag for d.
func (d Direction) Scope() string {
	if d == PipeToSocket {
		return obs.ScopePipeToSocket
	}
	return obs.ScopeSocketToPipe
}

// DefaultBufferSize is the largest chunk a pump moves per read.
const DefaultBufferSize = 1024

// Pump copies bytes in one direction. A Pump holds no per-run state and may
// be reused, but a single Run must not be called concurrently on the same
// streams.
type Pump struct {
	Direction  Direction
	BufferSize int
	Logger     *obs.Logger
}

type flusher interface {
	Flush() error
}

type deadliner interface {
	SetDeadline(time.Time) error
}

// Run copies src to dst until src reports EOF, ctx is cancelled, or an I/O
// error occurs. It returns the number of bytes written to dst.
//
// EOF and ordinary peer disconnects return a nil error. Cancellation returns
// ErrCancelled; the chunk in flight when ctx is cancelled may be lost.
// Anything else wraps ErrStreamIO.
//
// Cancelling ctx unblocks a pending read or write by expiring the stream
// deadlines. Streams without deadlines are closed instead.
func (p *Pump) Run(ctx context.Context, src io.Reader, dst io.Writer) (int64, error) {
	log := p.Logger.Scope(p.Direction.Scope())
	size := p.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	buf := make([]byte, size)
	relayed := obs.BytesRelayed.WithLabelValues(string(p.Direction))

	stop := context.AfterFunc(ctx, func() {
		interrupt(src)
		interrupt(dst)
	})
	defer stop()

	var total int64
	for {
		if ctx.Err() != nil {
			return total, ErrCancelled
		}
		log.WaitingData()
		n, rerr := src.Read(buf)
		if n > 0 {
			log.ReceivedData(n)
			if err := write(dst, buf[:n]); err != nil {
				return total, p.fail(ctx, log, "write", err)
			}
			total += int64(n)
			relayed.Add(float64(n))
			log.SentData(n)
		}
		if rerr != nil {
			return total, p.fail(ctx, log, "read", rerr)
		}
		if n == 0 {
			log.ConnectionClosed()
			return total, nil
		}
	}
}

func write(dst io.Writer, b []byte) error {
	n, err := dst.Write(b)
	if err != nil {
		return err
	}
	if n != len(b) {
		return io.ErrShortWrite
	}
	if f, ok := dst.(flusher); ok {
		return f.Flush()
	}
	return nil
}

// fail maps an I/O error to the pump's result.
func (p *Pump) fail(ctx context.Context, log *obs.Logger, op string, err error) error {
	if ctx.Err() != nil {
		return ErrCancelled
	}
	if IsExpectedClose(err) {
		log.ConnectionClosed()
		return nil
	}
	err = fmt.Errorf("%w: %s %s: %w", ErrStreamIO, p.Direction, op, err)
	obs.ErrorsTotal.WithLabelValues("stream_io").Inc()
	log.PumpFailed(err)
	return err
}

func interrupt(s any) {
	if d, ok := s.(deadliner); ok {
		_ = d.SetDeadline(time.Now())
		return
	}
	if c, ok := s.(io.Closer); ok {
		_ = c.Close()
	}
}
