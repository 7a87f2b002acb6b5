package gamma

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
	"time"
)

// gsettingsSchema holds the GNOME night light settings.
const gsettingsSchema = "org.gnome.settings-daemon.plugins.color"

// Night light color temperatures for levels 0 and 1.
const (
	gsettingsMinTemperature = 3000
	gsettingsMaxTemperature = 6500
)

// gsettingsKeys are saved by NewGSettings and restored by Close.
var gsettingsKeys = []string{
	"night-light-enabled",
	"night-light-schedule-automatic",
	"night-light-temperature",
}

// gsettingsAdapter approximates the filter with GNOME's night light, for
// compositors (GNOME, and KDE with the GNOME settings daemon) which don't
// expose gamma control to clients. Night light follows its own manual
// schedule, so the correction only shows within it (20:00 to 06:00 by
// default).
type gsettingsAdapter struct {
	logger *slog.Logger
	run    func(ctx context.Context, args ...string) (string, error)

	mu      sync.Mutex
	enabled bool
	initial map[string]string
}

// NewGSettings creates an adapter which sets the GNOME night light
// temperature using the gsettings command. The original night light settings
// are restored by Close.
func NewGSettings(logger *slog.Logger) (Adapter, error) {
	if _, err := exec.LookPath("gsettings"); err != nil {
		return nil, &UnsupportedPlatformError{GOOS: runtime.GOOS, Backend: "gsettings", Reason: err.Error()}
	}
	a, err := newGSettings(func(ctx context.Context, args ...string) (string, error) {
		return outputCommand(ctx, "gsettings", args...)
	}, logger)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func newGSettings(run func(ctx context.Context, args ...string) (string, error), logger *slog.Logger) (*gsettingsAdapter, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a := &gsettingsAdapter{
		logger:  logger,
		run:     run,
		initial: make(map[string]string, len(gsettingsKeys)),
	}
	for _, key := range gsettingsKeys {
		v, err := run(ctx, "get", gsettingsSchema, key)
		if err != nil {
			return nil, fmt.Errorf("gsettings: get %s: %w", key, err)
		}
		a.initial[key] = v
	}
	a.enabled = a.initial["night-light-enabled"] == "true" && a.initial["night-light-schedule-automatic"] == "false"
	return a, nil
}

func (a *gsettingsAdapter) Name() string {
	return "gsettings"
}

func (a *gsettingsAdapter) Apply(ctx context.Context, ramp *Ramp) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if ramp.Neutral() {
		if a.enabled {
			if err := a.set(ctx, "night-light-enabled", "false"); err != nil {
				return applyErr(a.Name(), err)
			}
			a.enabled = false
		}
		return nil
	}
	if !a.enabled {
		if err := a.set(ctx, "night-light-enabled", "true"); err != nil {
			return applyErr(a.Name(), err)
		}
		if err := a.set(ctx, "night-light-schedule-automatic", "false"); err != nil {
			return applyErr(a.Name(), err)
		}
		a.enabled = true
	}
	temp := gsettingsTemperature(ramp.Level)
	if err := a.set(ctx, "night-light-temperature", strconv.FormatUint(uint64(temp), 10)); err != nil {
		return applyErr(a.Name(), err)
	}
	a.logger.Debug("gsettings: applied night light", "level", ramp.Level, "temperature", temp)
	return nil
}

// Close restores the night light settings saved when the adapter was
// created, since they persist after we exit.
func (a *gsettingsAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	for _, key := range gsettingsKeys {
		if err := a.set(ctx, key, a.initial[key]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *gsettingsAdapter) set(ctx context.Context, key, value string) error {
	if _, err := a.run(ctx, "set", gsettingsSchema, key, value); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// gsettingsTemperature maps a filter level linearly onto the night light
// color temperature in kelvin.
func gsettingsTemperature(level float64) uint32 {
	level = ClampLevel(level)
	return uint32(math.Round(gsettingsMinTemperature + (gsettingsMaxTemperature-gsettingsMinTemperature)*level))
}
