package gamma

import (
	"log/slog"
	"runtime"
)

func newPlatform(backend string, opts Options, logger *slog.Logger) (Adapter, error) {
	switch backend {
	case "auto", "gdi":
		return NewGDI(logger)
	}
	return nil, &UnsupportedPlatformError{GOOS: runtime.GOOS, Backend: backend, Reason: "unknown backend"}
}
