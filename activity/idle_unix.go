//go:build unix && !darwin

package activity

import "log/slog"

// dbus comes first since X11 can only see input from X clients when running
// under XWayland.
var idleSources = []func(*slog.Logger) (IdleSource, error){
	newDBusIdle,
	newX11Idle,
}
