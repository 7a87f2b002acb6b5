package activity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/godbus/dbus/v5"
)

// dbusIdleMethods are tried in order. Both return milliseconds.
var dbusIdleMethods = []struct {
	name   string
	dest   string
	path   dbus.ObjectPath
	method string
}{
	{"mutter", "org.gnome.Mutter.IdleMonitor", "/org/gnome/Mutter/IdleMonitor/Core", "org.gnome.Mutter.IdleMonitor.GetIdletime"},
	{"screensaver", "org.freedesktop.ScreenSaver", "/org/freedesktop/ScreenSaver", "org.freedesktop.ScreenSaver.GetSessionIdleTime"},
}

type dbusIdle struct {
	conn   *dbus.Conn
	obj    dbus.BusObject
	name   string
	method string
}

// NewDBusIdle reads the idle time from the desktop environment over the
// session bus, which works on Wayland sessions where X11 can't see input.
func NewDBusIdle(ctx context.Context) (IdleSource, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("dbus: connect session bus: %w", err)
	}
	var errs []error
	for _, m := range dbusIdleMethods {
		s := &dbusIdle{
			conn:   conn,
			obj:    conn.Object(m.dest, m.path),
			name:   "dbus-" + m.name,
			method: m.method,
		}
		if _, err := s.Idle(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", m.dest, err))
			continue
		}
		return s, nil
	}
	conn.Close()
	return nil, fmt.Errorf("dbus: %w", errors.Join(errs...))
}

func newDBusIdle(logger *slog.Logger) (IdleSource, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return NewDBusIdle(ctx)
}

func (s *dbusIdle) Name() string {
	return s.name
}

func (s *dbusIdle) Idle(ctx context.Context) (time.Duration, error) {
	var v any
	if err := s.obj.CallWithContext(ctx, s.method, 0).Store(&v); err != nil {
		return 0, err
	}
	switch v := v.(type) {
	case uint64:
		return time.Duration(v) * time.Millisecond, nil
	case uint32:
		return time.Duration(v) * time.Millisecond, nil
	default:
		return 0, fmt.Errorf("unexpected idle time type %T", v)
	}
}

func (s *dbusIdle) Close() error {
	return s.conn.Close()
}
