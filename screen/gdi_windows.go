package screen

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	moduser32 = windows.NewLazySystemDLL("user32.dll")
	modgdi32  = windows.NewLazySystemDLL("gdi32.dll")

	procGetDC                  = moduser32.NewProc("GetDC")
	procReleaseDC              = moduser32.NewProc("ReleaseDC")
	procCreateCompatibleDC     = modgdi32.NewProc("CreateCompatibleDC")
	procCreateCompatibleBitmap = modgdi32.NewProc("CreateCompatibleBitmap")
	procSelectObject           = modgdi32.NewProc("SelectObject")
	procBitBlt                 = modgdi32.NewProc("BitBlt")
	procGetDIBits              = modgdi32.NewProc("GetDIBits")
	procDeleteObject           = modgdi32.NewProc("DeleteObject")
	procDeleteDC               = modgdi32.NewProc("DeleteDC")
)

const (
	_SRCCOPY        = 0x00CC0020
	_BI_RGB         = 0
	_DIB_RGB_COLORS = 0
)

type bitmapInfoHeader struct {
	Size          uint32
	Width         int32
	Height        int32
	Planes        uint16
	BitCount      uint16
	Compression   uint32
	SizeImage     uint32
	XPelsPerMeter int32
	YPelsPerMeter int32
	ClrUsed       uint32
	ClrImportant  uint32
}

type gdiSampler struct {
	region Region
	logger *slog.Logger
}

// NewGDI samples the primary desktop using GDI.
func NewGDI(region Region, logger *slog.Logger) (Sampler, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := procGetDIBits.Find(); err != nil {
		return nil, fmt.Errorf("gdi: %w", err)
	}
	return &gdiSampler{region: region, logger: logger}, nil
}

func (s *gdiSampler) Name() string {
	return "gdi"
}

func (s *gdiSampler) Close() error {
	return nil
}

func (s *gdiSampler) Sample(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, captureErr(s.Name(), err)
	}
	buf, err := s.capture()
	if err != nil {
		return 0, captureErr(s.Name(), err)
	}
	n := s.region.W * s.region.H
	var sum uint64
	for i := range n {
		sum += uint64(buf[i*4]) // BGRA
	}
	v, err := checkSample(float64(sum) / float64(n) / 255)
	if err != nil {
		return 0, captureErr(s.Name(), err)
	}
	s.logger.Debug("gdi: sampled screen", "region", s.region, "blue", v)
	return v, nil
}

func (s *gdiSampler) capture() ([]byte, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	w, h := s.region.W, s.region.H

	hdc, _, _ := procGetDC.Call(0)
	if hdc == 0 {
		return nil, fmt.Errorf("GetDC failed")
	}
	defer procReleaseDC.Call(0, hdc)

	mdc, _, _ := procCreateCompatibleDC.Call(hdc)
	if mdc == 0 {
		return nil, fmt.Errorf("CreateCompatibleDC failed")
	}
	defer procDeleteDC.Call(mdc)

	bmp, _, _ := procCreateCompatibleBitmap.Call(hdc, uintptr(w), uintptr(h))
	if bmp == 0 {
		return nil, fmt.Errorf("CreateCompatibleBitmap failed")
	}
	defer procDeleteObject.Call(bmp)

	old, _, _ := procSelectObject.Call(mdc, bmp)
	r, _, err := procBitBlt.Call(mdc, 0, 0, uintptr(w), uintptr(h), hdc, uintptr(s.region.X), uintptr(s.region.Y), _SRCCOPY)
	procSelectObject.Call(mdc, old) // GetDIBits needs the bitmap deselected
	if r == 0 {
		return nil, fmt.Errorf("BitBlt: %w", err)
	}

	bi := bitmapInfoHeader{
		Width:       int32(w),
		Height:      -int32(h), // top-down
		Planes:      1,
		BitCount:    32,
		Compression: _BI_RGB,
	}
	bi.Size = uint32(unsafe.Sizeof(bi))

	buf := make([]byte, w*h*4)
	r, _, err = procGetDIBits.Call(mdc, bmp, 0, uintptr(h), uintptr(unsafe.Pointer(&buf[0])), uintptr(unsafe.Pointer(&bi)), _DIB_RGB_COLORS)
	if r == 0 {
		return nil, fmt.Errorf("GetDIBits: %w", err)
	}
	return buf, nil
}
