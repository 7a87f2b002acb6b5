package gamma

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32                 = windows.NewLazySystemDLL("user32.dll")
	gdi32                  = windows.NewLazySystemDLL("gdi32.dll")
	procGetDC              = user32.NewProc("GetDC")
	procReleaseDC          = user32.NewProc("ReleaseDC")
	procSetDeviceGammaRamp = gdi32.NewProc("SetDeviceGammaRamp")
)

// gdiAdapter sets the gamma ramp of the primary display device context. Note
// that Windows rejects ramps which deviate too far from the identity unless
// the GdiIcmGammaRange registry value is raised, which shows up as an
// ApplyError at strong filter levels.
type gdiAdapter struct {
	logger *slog.Logger
}

// NewGDI creates an adapter using SetDeviceGammaRamp.
func NewGDI(logger *slog.Logger) (Adapter, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := procSetDeviceGammaRamp.Find(); err != nil {
		return nil, fmt.Errorf("gdi: %w", err)
	}
	return &gdiAdapter{logger: logger}, nil
}

func (a *gdiAdapter) Name() string {
	return "gdi"
}

func (a *gdiAdapter) Close() error {
	return nil
}

func (a *gdiAdapter) Apply(ctx context.Context, ramp *Ramp) error {
	return applyErr(a.Name(), applyCtx(ctx, func() error {
		// WORD[3][256]
		var buf [3 * RampSize]uint16
		copy(buf[0*RampSize:], ramp.R[:])
		copy(buf[1*RampSize:], ramp.G[:])
		copy(buf[2*RampSize:], ramp.B[:])

		hdc, _, err := procGetDC.Call(0)
		if hdc == 0 {
			return fmt.Errorf("get dc: %w", err)
		}
		defer procReleaseDC.Call(0, hdc)

		if ok, _, err := procSetDeviceGammaRamp.Call(hdc, uintptr(unsafe.Pointer(&buf[0]))); ok == 0 {
			if errors.Is(err, windows.ERROR_SUCCESS) {
				err = errors.New("ramp rejected")
			}
			return fmt.Errorf("set device gamma ramp: %w", err)
		}
		a.logger.Debug("gdi: applied color ramp", "level", ramp.Level)
		return nil
	}))
}
