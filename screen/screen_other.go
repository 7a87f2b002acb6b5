//go:build !unix && !windows

package screen

import (
	"errors"
	"log/slog"
	"runtime"
)

func newPlatform(region Region, logger *slog.Logger) (Sampler, error) {
	return nil, &UnsupportedPlatformError{GOOS: runtime.GOOS, Err: errors.New("no screen capture backends on this platform")}
}
