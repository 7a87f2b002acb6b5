package gamma

import (
	"log/slog"
	"os"
	"runtime"
)

func newPlatform(backend string, opts Options, logger *slog.Logger) (Adapter, error) {
	switch backend {
	case "wayland":
		return NewWayland("", logger)
	case "ddc":
		return NewDDC(opts.Monitors, logger)
	case "auto":
		if os.Getenv("WAYLAND_DISPLAY") != "" {
			// GNOME and KDE don't implement wlr-gamma-control
			a, err := NewWayland("", logger)
			return fallback(a, err, func() (Adapter, error) {
				return NewGSettings(logger)
			}, logger)
		}
	}
	return nil, &UnsupportedPlatformError{GOOS: runtime.GOOS, Backend: backend, Reason: "unknown backend"}
}
