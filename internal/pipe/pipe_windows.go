//go:build windows

package pipe

import (
	"context"
	"net"
	"strings"

	"github.com/Microsoft/go-winio"
)

const localPrefix = `\\.\pipe\`

// Path resolves a pipe name to its full Win32 pipe path.
func Path(name string) string {
	if strings.HasPrefix(name, `\\`) {
		return name
	}
	return localPrefix + name
}

func dialNative(ctx context.Context, path string) (net.Conn, error) {
	return winio.DialPipeContext(ctx, path)
}
