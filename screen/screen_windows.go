package screen

import (
	"log/slog"
	"runtime"
)

func newPlatform(region Region, logger *slog.Logger) (Sampler, error) {
	s, err := NewGDI(region, logger)
	if err != nil {
		return nil, &UnsupportedPlatformError{GOOS: runtime.GOOS, Err: err}
	}
	return s, nil
}
