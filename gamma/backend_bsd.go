//go:build unix && !darwin && !linux

package gamma

import (
	"log/slog"
	"runtime"
)

func newPlatform(backend string, opts Options, logger *slog.Logger) (Adapter, error) {
	return nil, &UnsupportedPlatformError{GOOS: runtime.GOOS, Backend: backend, Reason: "only x11 and xrandr are available"}
}
