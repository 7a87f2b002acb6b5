// Command bluelightd adjusts the display's blue-light filter based on the time
// of day and user activity, logging the screen's blue intensity every cycle.
//
// Configuration is read from BLUELIGHT_* environment variables, which may also
// be set in a .env file in the working directory.
//
//	bluelightd               run the control loop
//	bluelightd tail [-f] [file]
//	                         print the last record of a log (and follow it)
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/pgaskin/bluelight/activity"
	"github.com/pgaskin/bluelight/control"
	"github.com/pgaskin/bluelight/filter"
	"github.com/pgaskin/bluelight/gamma"
	"github.com/pgaskin/bluelight/samplelog"
	"github.com/pgaskin/bluelight/screen"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "bluelightd: load .env: %v\n", err)
		os.Exit(2)
	}

	cfg, err := LoadConfig(os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bluelightd: invalid configuration:\n%v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(os.Args) > 1 && os.Args[1] == "tail" {
		os.Exit(tail(ctx, cfg, os.Args[2:]))
	}
	if len(os.Args) > 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [tail [-f] [file]]\n", os.Args[0])
		os.Exit(2)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
	}))

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("bluelightd: fatal error", "error", err)
		stop()
		os.Exit(1)
	}
	logger.Info("bluelightd: stopped")
}

func run(ctx context.Context, cfg Config, logger *slog.Logger) error {
	display, err := gamma.New(cfg.Backend, gamma.Options{Outputs: cfg.Outputs, Monitors: cfg.Monitors}, logger)
	if err != nil {
		return fmt.Errorf("initialize display: %w", err)
	}
	defer display.Close()

	sampler, err := screen.New(cfg.Region, logger)
	if err != nil {
		return fmt.Errorf("initialize screen capture: %w", err)
	}
	defer sampler.Close()

	sink, err := samplelog.Create(cfg.LogFile)
	if err != nil {
		return err
	}
	defer sink.Close()

	tracker := activity.NewTracker()
	if src, err := activity.NewIdleSource(logger); err != nil {
		logger.Warn("bluelightd: no idle source, the user will be considered inactive after the first timeout", "error", err)
	} else {
		stopWatch := activity.Start(ctx, src, tracker, cfg.IdlePoll, logger)
		defer func() {
			stopWatch()
			src.Close()
		}()
	}

	loop := control.New(control.Config{
		Interval:          cfg.Interval,
		InactivityTimeout: cfg.InactivityTimeout,
		SampleTimeout:     cfg.SampleTimeout,
		ApplyTimeout:      cfg.ApplyTimeout,
		Estimator:         filter.NewEstimator(cfg.Policy, cfg.Night),
	}, sampler, tracker, display, sink, logger)

	logger.Info("bluelightd: starting",
		"participant", samplelog.Participant(cfg.LogFile),
		"log", cfg.LogFile,
		"display", display.Name(),
		"screen", sampler.Name(),
		"region", cfg.Region,
		"interval", cfg.Interval,
		"night", cfg.Night,
	)
	return loop.Run(ctx)
}
