package activity

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"
	"time"
)

var hidIdleTimeRe = regexp.MustCompile(`"HIDIdleTime"\s*=\s*(\d+)`)

type ioregIdle struct{}

// NewIORegIdle reads HIDIdleTime from the macOS IOHIDSystem using ioreg.
func NewIORegIdle() (IdleSource, error) {
	if _, err := exec.LookPath("ioreg"); err != nil {
		return nil, fmt.Errorf("ioreg: %w", err)
	}
	return ioregIdle{}, nil
}

func newIORegIdle(logger *slog.Logger) (IdleSource, error) {
	return NewIORegIdle()
}

func (ioregIdle) Name() string {
	return "ioreg"
}

func (ioregIdle) Idle(ctx context.Context) (time.Duration, error) {
	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, "ioreg", "-c", "IOHIDSystem", "-d", "4", "-r", "-k", "HIDIdleTime")
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ioreg: %w", err)
	}
	return parseHIDIdleTime(stdout.Bytes())
}

func (ioregIdle) Close() error {
	return nil
}

// parseHIDIdleTime parses the first HIDIdleTime (in nanoseconds) from ioreg
// output.
func parseHIDIdleTime(b []byte) (time.Duration, error) {
	m := hidIdleTimeRe.FindSubmatch(b)
	if m == nil {
		return 0, errors.New("HIDIdleTime not found")
	}
	ns, err := strconv.ParseUint(string(m[1]), 10, 63)
	if err != nil {
		return 0, fmt.Errorf("parse HIDIdleTime: %w", err)
	}
	return time.Duration(ns), nil
}
