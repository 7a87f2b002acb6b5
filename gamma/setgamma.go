package gamma

import (
	"context"
	"log/slog"
	"os/exec"
	"strconv"
)

// setgammaAdapter uses the setgamma command on macOS, which takes the blue
// scale as its only argument.
type setgammaAdapter struct {
	logger *slog.Logger
}

// NewSetGamma creates an adapter which runs setgamma. A missing binary is not
// an error here since it will be reported by Apply.
func NewSetGamma(logger *slog.Logger) (Adapter, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if _, err := exec.LookPath("setgamma"); err != nil {
		logger.Warn("setgamma: command not found, display correction will not be applied", "error", err)
	}
	return &setgammaAdapter{logger: logger}, nil
}

func (a *setgammaAdapter) Name() string {
	return "setgamma"
}

func (a *setgammaAdapter) Close() error {
	return nil
}

func (a *setgammaAdapter) Apply(ctx context.Context, ramp *Ramp) error {
	err := runCommand(ctx, "setgamma", strconv.FormatFloat(ClampLevel(ramp.Level), 'f', 2, 64))
	if err == nil {
		a.logger.Debug("setgamma: applied", "level", ramp.Level)
	}
	return applyErr(a.Name(), err)
}
