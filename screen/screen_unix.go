//go:build unix && !darwin

package screen

import (
	"errors"
	"log/slog"
	"os"
	"runtime"
)

func newPlatform(region Region, logger *slog.Logger) (Sampler, error) {
	var errs []error
	if os.Getenv("WAYLAND_DISPLAY") != "" {
		// X11 clients under XWayland can't see native wayland windows
		s, err := newCommand(toolGrim, region, logger)
		if err == nil {
			return s, nil
		}
		errs = append(errs, err)
	}
	if os.Getenv("DISPLAY") != "" {
		s, err := NewX11("", region, logger)
		if err == nil {
			return s, nil
		}
		errs = append(errs, err)
	}
	for _, tool := range []commandTool{toolGnomeScreenshot, toolScrot} {
		s, err := newCommand(tool, region, logger)
		if err == nil {
			return s, nil
		}
		errs = append(errs, err)
	}
	return nil, &UnsupportedPlatformError{GOOS: runtime.GOOS, Err: errors.Join(errs...)}
}
