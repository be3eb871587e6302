//go:build !windows

package pipe

import (
	"context"
	"net"
	"os"
	"path/filepath"
)

const dotnetPrefix = "CoreFxPipe_"

// Path resolves a pipe name to the socket path it is served on.
func Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(os.TempDir(), dotnetPrefix+name)
}

func dialNative(ctx context.Context, path string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "unix", path)
}
