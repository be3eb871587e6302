// Package pipe opens client connections to a local named pipe.
//
// On Unix the pipe is a Unix domain stream socket. A name that is already an
// absolute path is dialed as-is; any other name resolves to
// $TMPDIR/CoreFxPipe_<name>, which is where .NET named pipe servers bind, so
// tcp2np interoperates with them by plain pipe name. On Windows the name
// resolves to \\.\pipe\<name>.
//
// Connect makes exactly one attempt. Retrying is left to the caller.
package pipe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

var (
	ErrConnectTimeout = errors.New("pipe connect timed out")
	ErrConnectFailed  = errors.New("pipe connect failed")
	ErrCancelled      = errors.New("pipe connect cancelled")
)

// DefaultTimeout bounds the wait for a pipe server.
const DefaultTimeout = 30 * time.Second

// DialFunc dials a resolved pipe path.
type DialFunc func(ctx context.Context, path string) (net.Conn, error)

// Connector opens pipe client connections. The zero value dials the
// platform's native pipe transport.
type Connector struct {
	Dial DialFunc
}

// Connect opens the pipe called name, waiting at most timeout. A zero
// timeout means DefaultTimeout. The returned error wraps exactly one of
// ErrConnectTimeout, ErrConnectFailed or ErrCancelled.
func (c *Connector) Connect(ctx context.Context, name string, timeout time.Duration) (net.Conn, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	dial := dialNative
	if c != nil && c.Dial != nil {
		dial = c.Dial
	}
	path := Path(name)

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := dial(dialCtx, path)
	if err == nil {
		return conn, nil
	}
	switch {
	case ctx.Err() != nil:
		return nil, fmt.Errorf("%w: %s", ErrCancelled, path)
	case dialCtx.Err() != nil || isTimeout(err):
		return nil, fmt.Errorf("%w: %s after %s", ErrConnectTimeout, path, timeout)
	default:
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectFailed, path, err)
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
