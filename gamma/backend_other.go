//go:build !unix && !windows

package gamma

import (
	"log/slog"
	"runtime"
)

func newPlatform(backend string, opts Options, logger *slog.Logger) (Adapter, error) {
	return nil, &UnsupportedPlatformError{GOOS: runtime.GOOS, Backend: backend, Reason: "no display backends on this platform"}
}
