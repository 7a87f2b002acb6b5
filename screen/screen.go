// Package screen samples the mean blue intensity of a region of the screen.
package screen

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"golang.org/x/image/draw"
)

// Sampler captures a region of the screen.
type Sampler interface {
	// Name returns the backend name.
	Name() string

	// Sample returns the mean normalized blue intensity of the region, in
	// [0, 1]. Errors are returned as a *CaptureError.
	Sample(ctx context.Context) (float64, error)

	// Close releases any resources.
	Close() error
}

// Region is a rectangle in screen coordinates.
type Region struct {
	X, Y int
	W, H int
}

// DefaultRegion is the top-left 100x100 pixels.
var DefaultRegion = Region{X: 0, Y: 0, W: 100, H: 100}

// ParseRegion parses a region in the form "x,y,w,h".
func ParseRegion(s string) (Region, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Region{}, fmt.Errorf("invalid region %q: expected x,y,w,h", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Region{}, fmt.Errorf("invalid region %q: %w", s, err)
		}
		v[i] = n
	}
	r := Region{X: v[0], Y: v[1], W: v[2], H: v[3]}
	if r.X < 0 || r.Y < 0 || r.W <= 0 || r.H <= 0 {
		return Region{}, fmt.Errorf("invalid region %q: must have a non-negative origin and a positive size", s)
	}
	return r, nil
}

func (r Region) String() string {
	return strconv.Itoa(r.X) + "," + strconv.Itoa(r.Y) + "," + strconv.Itoa(r.W) + "," + strconv.Itoa(r.H)
}

// Rect converts the region to an image rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

// ErrInvalidSample is wrapped by a *CaptureError when a capture succeeded but
// produced unusable data.
var ErrInvalidSample = errors.New("invalid sample")

// UnsupportedPlatformError is returned by [New] when no capture backend is
// usable on the current platform or session.
type UnsupportedPlatformError struct {
	GOOS string
	Err  error
}

func (e *UnsupportedPlatformError) Error() string {
	return "screen: no capture backend for " + e.GOOS + ": " + e.Err.Error()
}

func (e *UnsupportedPlatformError) Is(target error) bool {
	return target == errors.ErrUnsupported
}

func (e *UnsupportedPlatformError) Unwrap() error {
	return e.Err
}

// CaptureError is returned when a sample could not be taken.
type CaptureError struct {
	Backend string
	Err     error
}

func (e *CaptureError) Error() string {
	return e.Backend + ": capture: " + e.Err.Error()
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

func captureErr(backend string, err error) error {
	if err == nil {
		return nil
	}
	return &CaptureError{Backend: backend, Err: err}
}

// New creates a Sampler for region using the best backend for the current
// platform. If logger is not nil, it is used for debug logs from this package.
func New(region Region, logger *slog.Logger) (Sampler, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if region.W <= 0 || region.H <= 0 {
		return nil, fmt.Errorf("screen: empty region %s", region)
	}
	return newPlatform(region, logger)
}

// MeanBlue returns the mean blue intensity of an image in [0, 1].
func MeanBlue(img image.Image) (float64, error) {
	b := img.Bounds()
	if b.Empty() {
		return 0, fmt.Errorf("%w: empty image", ErrInvalidSample)
	}
	rgba, ok := img.(*image.RGBA)
	if !ok {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Copy(rgba, image.Point{}, img, b, draw.Src, nil)
	}
	rb := rgba.Bounds()
	var sum uint64
	for y := rb.Min.Y; y < rb.Max.Y; y++ {
		row := rgba.Pix[rgba.PixOffset(rb.Min.X, y):rgba.PixOffset(rb.Max.X, y)]
		for i := 2; i < len(row); i += 4 {
			sum += uint64(row[i])
		}
	}
	return checkSample(float64(sum) / float64(rb.Dx()*rb.Dy()) / 255)
}

func checkSample(v float64) (float64, error) {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return 0, fmt.Errorf("%w: mean blue %v out of range", ErrInvalidSample, v)
	}
	return v, nil
}
