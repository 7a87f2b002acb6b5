package gamma

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
)

// x11Adapter manages gamma ramps for X11 displays using RandR. It is safe for
// concurrent usage.
type x11Adapter struct {
	conn   *xgb.Conn
	logger *slog.Logger

	root xproto.Window

	mu    sync.Mutex
	ramp  *Ramp
	fatal error
}

// NewX11 opens a X11 connection to the specified display (empty for the
// default), processing RandR events in another goroutine so the last ramp is
// re-applied when CRTCs change. If the connection is closed by the server,
// every subsequent Apply returns an error.
func NewX11(display string, logger *slog.Logger) (Adapter, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	conn, err := xgb.NewConnDisplay(display)
	if err != nil {
		return nil, fmt.Errorf("x11: connect: %w", err)
	}

	a := &x11Adapter{conn: conn, logger: logger}
	a.root = xproto.Setup(conn).DefaultScreen(conn).Root

	if err := randr.Init(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("x11: randr: %w", err)
	}

	if err := randr.SelectInputChecked(conn, a.root, randr.NotifyMaskCrtcChange).Check(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("x11: randr: select input: %w", err)
	}

	go func() {
		for {
			ev, err := conn.WaitForEvent()
			if err != nil {
				// protocol errors from unchecked requests
				a.logger.Debug("x11: async error", "error", err)
				continue
			}
			switch ev := ev.(type) {
			case randr.NotifyEvent:
				if ev.SubCode == randr.NotifyCrtcChange {
					if err := a.apply(); err != nil {
						a.logger.Warn("x11: failed to re-apply color ramp after crtc change", "error", err)
					}
				}
			case nil:
				// xgb returns (nil, nil) when the connection is closed
				a.mu.Lock()
				a.fatal = errors.New("connection closed")
				a.mu.Unlock()
				return
			}
		}
	}()

	return a, nil
}

func (a *x11Adapter) Name() string {
	return "x11"
}

func (a *x11Adapter) Close() error {
	a.conn.Close()
	return nil
}

func (a *x11Adapter) Apply(ctx context.Context, ramp *Ramp) error {
	a.mu.Lock()
	a.ramp = ramp
	a.mu.Unlock()

	return applyErr(a.Name(), applyCtx(ctx, a.apply))
}

func (a *x11Adapter) apply() error {
	ramp, fatal := func() (*Ramp, error) {
		a.mu.Lock()
		defer a.mu.Unlock()
		return a.ramp, a.fatal
	}()
	if fatal != nil {
		return fmt.Errorf("connection lost: %w", fatal)
	}
	if ramp == nil {
		return nil // not ready
	}

	resources, err := randr.GetScreenResourcesCurrent(a.conn, a.root).Reply()
	if err != nil {
		return fmt.Errorf("get screen resources: %w", err)
	}

	var errs []error
	for _, crtc := range resources.Crtcs {
		if err := SetX11(a.conn, crtc, ramp); err != nil {
			a.logger.Warn("x11: randr: failed to set color ramp", "crtc", crtc, "error", err)
			errs = append(errs, fmt.Errorf("crtc %d: %w", crtc, err))
		}
	}
	a.logger.Debug("x11: applied color ramp", "level", ramp.Level, "crtcs", len(resources.Crtcs))
	return errors.Join(errs...)
}

// SetX11 applies a color ramp to the specified CRTC, resampling it to the
// CRTC's gamma size. The RandR extension must be initialized.
func SetX11(conn *xgb.Conn, crtc randr.Crtc, ramp *Ramp) error {
	gamma, err := randr.GetCrtcGammaSize(conn, crtc).Reply()
	if err != nil {
		return fmt.Errorf("get crtc gamma size: %w", err)
	}
	if gamma.Size == 0 {
		return nil // disabled crtc
	}
	gr, gg, gb := ramp.Resize(int(gamma.Size))
	if err := randr.SetCrtcGammaChecked(conn, crtc, gamma.Size, gr, gg, gb).Check(); err != nil {
		return fmt.Errorf("set crtc gamma: %w", err)
	}
	return nil
}
