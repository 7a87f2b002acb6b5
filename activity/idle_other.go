//go:build !unix && !windows

package activity

import "log/slog"

var idleSources []func(*slog.Logger) (IdleSource, error)
