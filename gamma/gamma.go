// Package gamma applies blue-light correction to displays using gamma ramps
// (or an equivalent gamma/brightness command) with support for X11, Wayland,
// macOS and Windows.
package gamma

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
)

// Adapter applies color correction to the displays of the current session.
// Implementations are safe for concurrent usage.
type Adapter interface {
	// Name returns the backend name.
	Name() string

	// Apply applies the ramp to all current (and, where the backend can see
	// them, future) outputs. Errors are returned as an *ApplyError and should
	// not be treated as fatal.
	Apply(ctx context.Context, ramp *Ramp) error

	// Close releases the connection to the display server. It may or may not
	// revert the ramps.
	Close() error
}

// Options contains backend-specific settings.
type Options struct {
	// Outputs restricts the xrandr backend to the named outputs. If empty, all
	// connected outputs are used.
	Outputs []string

	// Monitors restricts the ddc backend to the monitors with the specified
	// EDID IDs. If empty, all monitors supporting DDC/CI are used.
	Monitors []string
}

// UnsupportedPlatformError is returned by [New] when there is no backend for
// the current platform or session.
type UnsupportedPlatformError struct {
	GOOS    string
	Backend string
	Reason  string
}

func (e *UnsupportedPlatformError) Error() string {
	if e.Backend != "" && e.Backend != "auto" {
		return fmt.Sprintf("gamma: backend %q is not supported on %s: %s", e.Backend, e.GOOS, e.Reason)
	}
	return fmt.Sprintf("gamma: no display backend for %s: %s", e.GOOS, e.Reason)
}

func (e *UnsupportedPlatformError) Unwrap() error {
	return errors.ErrUnsupported
}

// ApplyError is returned when a backend fails to apply a ramp.
type ApplyError struct {
	Backend string
	Err     error
}

func (e *ApplyError) Error() string {
	return e.Backend + ": apply: " + e.Err.Error()
}

func (e *ApplyError) Unwrap() error {
	return e.Err
}

func applyErr(backend string, err error) error {
	if err == nil {
		return nil
	}
	return &ApplyError{Backend: backend, Err: err}
}

// New creates an [Adapter] for the named backend. If backend is empty or
// "auto", one is selected based on the platform and session environment. If
// logger is not nil, it is used for debug logs from this package.
func New(backend string, opts Options, logger *slog.Logger) (Adapter, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	switch backend {
	case "", "auto":
		return newAuto(opts, logger)
	case "x11":
		return NewX11("", logger)
	case "xrandr":
		return NewXRandR(opts.Outputs, logger)
	case "gsettings":
		return NewGSettings(logger)
	default:
		return newPlatform(backend, opts, logger)
	}
}

func newAuto(opts Options, logger *slog.Logger) (Adapter, error) {
	if a, err := newPlatform("auto", opts, logger); !errors.Is(err, errors.ErrUnsupported) {
		return a, err
	}
	if os.Getenv("DISPLAY") != "" {
		return NewX11("", logger)
	}
	return nil, &UnsupportedPlatformError{
		GOOS:    runtime.GOOS,
		Backend: "auto",
		Reason:  "no display server found (neither WAYLAND_DISPLAY nor DISPLAY is set)",
	}
}

// fallback returns a unless err is [errors.ErrUnsupported], in which case
// next is tried instead. If both are unsupported, the error still matches
// [errors.ErrUnsupported].
func fallback(a Adapter, err error, next func() (Adapter, error), logger *slog.Logger) (Adapter, error) {
	if err == nil || !errors.Is(err, errors.ErrUnsupported) {
		return a, err
	}
	b, nerr := next()
	if nerr != nil {
		return nil, errors.Join(err, nerr)
	}
	logger.Info("gamma: falling back to "+b.Name(), "error", err)
	return b, nil
}

// applyCtx runs fn, returning early if ctx is done first. The function keeps
// running in the background in that case.
func applyCtx(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ch := make(chan error, 1)
	go func() {
		ch <- fn()
	}()
	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
