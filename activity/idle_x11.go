package activity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/screensaver"
	"github.com/BurntSushi/xgb/xproto"
)

type x11Idle struct {
	conn *xgb.Conn
	root xproto.Window
}

// NewX11Idle reads the idle time using the MIT-SCREEN-SAVER extension on the
// specified display (empty for the default).
func NewX11Idle(display string) (IdleSource, error) {
	conn, err := xgb.NewConnDisplay(display)
	if err != nil {
		return nil, fmt.Errorf("x11: connect: %w", err)
	}
	if err := screensaver.Init(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("x11: screensaver: %w", err)
	}
	return &x11Idle{
		conn: conn,
		root: xproto.Setup(conn).DefaultScreen(conn).Root,
	}, nil
}

func newX11Idle(logger *slog.Logger) (IdleSource, error) {
	if os.Getenv("DISPLAY") == "" {
		return nil, errors.New("x11: DISPLAY not set")
	}
	return NewX11Idle("")
}

func (s *x11Idle) Name() string {
	return "x11"
}

func (s *x11Idle) Idle(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	info, err := screensaver.QueryInfo(s.conn, xproto.Drawable(s.root)).Reply()
	if err != nil {
		return 0, fmt.Errorf("query screensaver info: %w", err)
	}
	return time.Duration(info.MsSinceUserInput) * time.Millisecond, nil
}

func (s *x11Idle) Close() error {
	s.conn.Close()
	return nil
}
