package screen

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math/bits"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
)

type x11Sampler struct {
	conn   *xgb.Conn
	logger *slog.Logger
	root   xproto.Window
	region Region
	order  binary.ByteOrder
	mask   uint32
}

// NewX11 samples the root window of the specified X11 display (empty for the
// default). Only 32 bits-per-pixel TrueColor screens are supported. The region
// is clipped to the screen.
func NewX11(display string, region Region, logger *slog.Logger) (Sampler, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	conn, err := xgb.NewConnDisplay(display)
	if err != nil {
		return nil, fmt.Errorf("x11: connect: %w", err)
	}

	setup := xproto.Setup(conn)
	scr := setup.DefaultScreen(conn)

	s := &x11Sampler{
		conn:   conn,
		logger: logger,
		root:   scr.Root,
		order:  binary.LittleEndian,
	}
	if setup.ImageByteOrder == xproto.ImageOrderMSBFirst {
		s.order = binary.BigEndian
	}

	var bpp byte
	for _, f := range setup.PixmapFormats {
		if f.Depth == scr.RootDepth {
			bpp = f.BitsPerPixel
		}
	}
	for _, d := range scr.AllowedDepths {
		for _, v := range d.Visuals {
			if v.VisualId == scr.RootVisual {
				s.mask = v.BlueMask
			}
		}
	}
	if bpp != 32 || s.mask == 0 {
		conn.Close()
		return nil, fmt.Errorf("x11: unsupported root visual (depth %d, %d bpp, blue mask %#x)", scr.RootDepth, bpp, s.mask)
	}

	s.region = Region{
		X: region.X,
		Y: region.Y,
		W: min(region.W, int(scr.WidthInPixels)-region.X),
		H: min(region.H, int(scr.HeightInPixels)-region.Y),
	}
	if s.region.W <= 0 || s.region.H <= 0 {
		conn.Close()
		return nil, fmt.Errorf("x11: region %s is outside the %dx%d screen", region, scr.WidthInPixels, scr.HeightInPixels)
	}
	return s, nil
}

func (s *x11Sampler) Name() string {
	return "x11"
}

func (s *x11Sampler) Sample(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, captureErr(s.Name(), err)
	}
	img, err := xproto.GetImage(s.conn, xproto.ImageFormatZPixmap, xproto.Drawable(s.root),
		int16(s.region.X), int16(s.region.Y), uint16(s.region.W), uint16(s.region.H), ^uint32(0)).Reply()
	if err != nil {
		return 0, captureErr(s.Name(), fmt.Errorf("get image: %w", err))
	}
	v, err := meanBlueZPixmap(img.Data, s.region.W*s.region.H, s.order, s.mask)
	if err != nil {
		return 0, captureErr(s.Name(), err)
	}
	s.logger.Debug("x11: sampled screen", "region", s.region, "blue", v)
	return v, nil
}

func (s *x11Sampler) Close() error {
	s.conn.Close()
	return nil
}

// meanBlueZPixmap averages the blue channel of n 32-bit pixels.
func meanBlueZPixmap(data []byte, n int, order binary.ByteOrder, mask uint32) (float64, error) {
	if n <= 0 || len(data) < n*4 {
		return 0, fmt.Errorf("%w: got %d bytes for %d pixels", ErrInvalidSample, len(data), n)
	}
	shift := bits.TrailingZeros32(mask)
	maxv := mask >> shift
	var sum uint64
	for i := range n {
		sum += uint64(order.Uint32(data[i*4:]) & mask >> shift)
	}
	return checkSample(float64(sum) / float64(n) / float64(maxv))
}
