package relay

import (
	"errors"
	"io"
	"net"
	"syscall"
)

var (
	// ErrAccept wraps listener failures that end Run.
	ErrAccept = errors.New("accept failed")
	// ErrStreamIO wraps a read, write or flush failure in a pump.
	ErrStreamIO = errors.New("stream i/o error")
	// ErrCancelled is returned by a pump stopped through its context.
	ErrCancelled = errors.New("relay cancelled")
)

// IsExpectedClose reports whether err is an ordinary peer disconnect: EOF, a
// closed connection, a broken pipe or a reset. Pumps treat these like EOF.
func IsExpectedClose(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EPIPE || errno == syscall.ECONNRESET
	}
	return false
}
