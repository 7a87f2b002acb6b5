package gamma

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
)

// xrandrAdapter approximates the filter using the xrandr command's software
// gamma and brightness instead of a full ramp.
type xrandrAdapter struct {
	logger  *slog.Logger
	outputs []string
}

// NewXRandR creates an adapter which runs xrandr for each of the specified
// outputs, or all connected outputs if none are specified. A missing xrandr
// binary is not an error here since it will be reported by Apply.
func NewXRandR(outputs []string, logger *slog.Logger) (Adapter, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if _, err := exec.LookPath("xrandr"); err != nil {
		logger.Warn("xrandr: command not found, display correction will not be applied", "error", err)
	}
	return &xrandrAdapter{
		logger:  logger,
		outputs: outputs,
	}, nil
}

func (a *xrandrAdapter) Name() string {
	return "xrandr"
}

func (a *xrandrAdapter) Close() error {
	return nil
}

func (a *xrandrAdapter) Apply(ctx context.Context, ramp *Ramp) error {
	outputs := a.outputs
	if len(outputs) == 0 {
		var err error
		if outputs, err = xrandrOutputs(ctx); err != nil {
			return applyErr(a.Name(), err)
		}
		if len(outputs) == 0 {
			return applyErr(a.Name(), errors.New("no connected outputs"))
		}
	}
	var errs []error
	for _, output := range outputs {
		if err := runCommand(ctx, "xrandr", xrandrArgs(output, ramp.Level)...); err != nil {
			errs = append(errs, fmt.Errorf("output %s: %w", output, err))
		}
	}
	a.logger.Debug("xrandr: applied gamma", "level", ramp.Level, "outputs", outputs)
	return applyErr(a.Name(), errors.Join(errs...))
}

// xrandrArgs computes the arguments for a filter level. The blue gamma follows
// the level (with a floor of 0.1 so the channel isn't completely black) and
// the brightness is reduced by up to half at full strength.
func xrandrArgs(output string, level float64) []string {
	level = ClampLevel(level)
	blue := min(level+0.1, 1)
	brightness := 0.5 + 0.5*level
	return []string{
		"--output", output,
		"--gamma", "1:1:" + strconv.FormatFloat(blue, 'f', 2, 64),
		"--brightness", strconv.FormatFloat(brightness, 'f', 2, 64),
	}
}

// xrandrOutputs lists connected outputs from xrandr --query.
func xrandrOutputs(ctx context.Context) ([]string, error) {
	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, "xrandr", "--query")
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("xrandr --query: %w", err)
	}
	return parseXRandROutputs(&stdout), nil
}

func parseXRandROutputs(r *bytes.Buffer) []string {
	var outputs []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if line == "" || line[0] == ' ' || line[0] == '\t' {
			continue // modes
		}
		if name, rest, ok := strings.Cut(line, " "); ok && strings.HasPrefix(rest, "connected") {
			outputs = append(outputs, name)
		}
	}
	return outputs
}

// runCommand runs a command, including its stderr in the error.
func runCommand(ctx context.Context, name string, args ...string) error {
	_, err := outputCommand(ctx, name, args...)
	return err
}

// outputCommand runs a command and returns its trimmed stdout, including its
// stderr in the error.
func outputCommand(ctx context.Context, name string, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%s: %w (stderr: %s)", name, err, msg)
		}
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return strings.TrimSpace(stdout.String()), nil
}
