package gamma

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"

	"github.com/pgaskin/bluelight/ddc"
)

// ddcAdapter scales the blue video gain of external monitors over DDC/CI.
// Since the monitor keeps the setting, the original gain is restored on Close.
type ddcAdapter struct {
	logger *slog.Logger

	mu       sync.Mutex
	monitors []*ddcMonitor
}

type ddcMonitor struct {
	id      string
	ci      *ddc.CI
	initial uint16
	max     uint16
	cur     uint16
}

// NewDDC opens the DDC/CI bus of each connected monitor with the specified
// EDID IDs (see [ddc.EDIDID]), or all of them if none are specified. Monitors
// which don't support setting the blue gain are skipped.
func NewDDC(ids []string, logger *slog.Logger) (Adapter, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	ms, err := ddc.Monitors()
	if err != nil {
		return nil, fmt.Errorf("ddc: %w", err)
	}

	a := &ddcAdapter{logger: logger}
	for _, m := range ms {
		if len(ids) != 0 && !slices.Contains(ids, m.ID) {
			continue
		}
		for _, bus := range m.I2C {
			ci, err := ddc.Open(bus)
			if err != nil {
				logger.Debug("ddc: failed to open i2c bus", "monitor", m.ID, "bus", bus, "error", err)
				continue
			}
			val, max, err := ci.GetVCP(ddc.VCPBlueGain)
			if err != nil || max == 0 {
				logger.Debug("ddc: failed to get blue gain", "monitor", m.ID, "bus", bus, "error", err)
				ci.Close()
				continue
			}
			logger.Debug("ddc: using monitor", "monitor", m.ID, "connector", m.Connector, "bus", bus, "gain", val, "max", max)
			a.monitors = append(a.monitors, &ddcMonitor{
				id:      m.ID,
				ci:      ci,
				initial: val,
				max:     max,
				cur:     val,
			})
			break
		}
	}
	if len(a.monitors) == 0 {
		return nil, errors.New("ddc: no monitors with a ddc/ci blue gain control found")
	}
	return a, nil
}

func (a *ddcAdapter) Name() string {
	return "ddc"
}

func (a *ddcAdapter) Apply(ctx context.Context, ramp *Ramp) error {
	return applyErr(a.Name(), applyCtx(ctx, func() error {
		a.mu.Lock()
		defer a.mu.Unlock()

		var errs []error
		for _, m := range a.monitors {
			gain := ddcGain(m.initial, m.max, ramp.Level)
			if gain == m.cur {
				continue // ddc is slow, and some monitors show an osd on every change
			}
			if err := m.ci.SetVCP(ddc.VCPBlueGain, gain); err != nil {
				errs = append(errs, fmt.Errorf("monitor %s: %w", m.id, err))
				continue
			}
			m.cur = gain
		}
		a.logger.Debug("ddc: applied blue gain", "level", ramp.Level, "monitors", len(a.monitors))
		return errors.Join(errs...)
	}))
}

func (a *ddcAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	for _, m := range a.monitors {
		if m.cur != m.initial {
			if err := m.ci.SetVCP(ddc.VCPBlueGain, m.initial); err != nil {
				errs = append(errs, fmt.Errorf("monitor %s: restore blue gain: %w", m.id, err))
			}
		}
		errs = append(errs, m.ci.Close())
	}
	a.monitors = nil
	return errors.Join(errs...)
}

// ddcGain scales the initial gain by the level.
func ddcGain(initial, max uint16, level float64) uint16 {
	return uint16(math.Round(float64(min(initial, max)) * ClampLevel(level)))
}
