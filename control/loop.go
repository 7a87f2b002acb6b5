// Package control runs the sample, estimate, apply, and log cycle.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/pgaskin/bluelight/filter"
	"github.com/pgaskin/bluelight/gamma"
	"github.com/pgaskin/bluelight/samplelog"
)

// Sampler measures the mean blue intensity of the screen.
type Sampler interface {
	Sample(ctx context.Context) (float64, error)
}

// Activity reports whether the user is active.
type Activity interface {
	Active(now time.Time, timeout time.Duration) bool
}

// Display applies a color ramp.
type Display interface {
	Apply(ctx context.Context, ramp *gamma.Ramp) error
}

// Sink stores records.
type Sink interface {
	Append(samplelog.Record) error
}

// State is the current step of the loop.
type State int32

const (
	Idle State = iota
	Sampling
	Estimating
	Applying
	Logging
	Sleeping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Sampling:
		return "sampling"
	case Estimating:
		return "estimating"
	case Applying:
		return "applying"
	case Logging:
		return "logging"
	case Sleeping:
		return "sleeping"
	default:
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
}

// Config contains the loop settings. Zero values are replaced by defaults.
type Config struct {
	Interval          time.Duration // 60s
	InactivityTimeout time.Duration // Interval
	SampleTimeout     time.Duration // 10s
	ApplyTimeout      time.Duration // 10s
	RetryDelay        time.Duration // 1s, before retrying a failed log write
	Estimator         filter.Estimator
	Now               func() time.Time
}

// Loop runs the control loop. It is not safe to call Run concurrently, but
// the accessors may be used while it is running.
type Loop struct {
	cfg      Config
	sampler  Sampler
	activity Activity
	display  Display
	sink     Sink
	logger   *slog.Logger

	level atomic.Uint64 // float64 bits
	state atomic.Int32
	cycle atomic.Uint64
}

// New creates a new loop with an initial level of 1 (no correction). If
// logger is not nil, it is used to log the progress and errors of each cycle.
func New(cfg Config, sampler Sampler, activity Activity, display Display, sink Sink, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.InactivityTimeout <= 0 {
		cfg.InactivityTimeout = cfg.Interval
	}
	if cfg.SampleTimeout <= 0 {
		cfg.SampleTimeout = 10 * time.Second
	}
	if cfg.ApplyTimeout <= 0 {
		cfg.ApplyTimeout = 10 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Estimator.Policy == (filter.Policy{}) {
		cfg.Estimator.Policy = filter.DefaultPolicy()
	}
	if cfg.Estimator.Night == nil {
		cfg.Estimator = filter.NewEstimator(cfg.Estimator.Policy, nil)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	l := &Loop{
		cfg:      cfg,
		sampler:  sampler,
		activity: activity,
		display:  display,
		sink:     sink,
		logger:   logger,
	}
	l.level.Store(math.Float64bits(1))
	return l
}

// Level returns the current filter level.
func (l *Loop) Level() float64 {
	return math.Float64frombits(l.level.Load())
}

// State returns the current step.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Cycles returns the number of completed cycles.
func (l *Loop) Cycles() uint64 {
	return l.cycle.Load()
}

func (l *Loop) setState(s State) {
	l.state.Store(int32(s))
}

// Run runs cycles every Interval until ctx is cancelled, returning nil. Sample
// and apply failures are logged and the loop continues. If a record can't be
// written after one retry, the error (wrapping a *samplelog.WriteError) is
// returned.
func (l *Loop) Run(ctx context.Context) error {
	defer l.setState(Idle)

	timer := time.NewTimer(l.cfg.Interval)
	timer.Stop()
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := l.Cycle(ctx); err != nil {
			return err
		}

		l.setState(Sleeping)
		timer.Reset(l.cfg.Interval)
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
	}
}

// Cycle runs a single cycle. It returns an error only if the record could not
// be written.
func (l *Loop) Cycle(ctx context.Context) error {
	now := l.cfg.Now()
	n := l.cycle.Load() + 1
	defer l.cycle.Store(n)

	l.setState(Sampling)
	blue, sampleErr := l.sample(ctx)
	if sampleErr != nil {
		l.logger.Warn("control: failed to sample screen, record will be skipped", "cycle", n, "error", sampleErr)
	}
	active := l.activity.Active(now, l.cfg.InactivityTimeout)

	if ctx.Err() != nil {
		return nil
	}

	l.setState(Estimating)
	prev := l.Level()
	level := l.cfg.Estimator.NextAt(prev, active, now)
	l.level.Store(math.Float64bits(level))

	l.setState(Applying)
	if _, err := callTimeout(ctx, l.cfg.ApplyTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, l.display.Apply(ctx, gamma.MakeRamp(level))
	}); err != nil {
		l.logger.Warn("control: failed to apply filter", "cycle", n, "level", level, "error", err)
	}

	l.logger.Debug("control: cycle", "cycle", n, "blue", blue, "active", active, "prev", prev, "level", level)

	if sampleErr != nil {
		return nil
	}

	l.setState(Logging)
	rec := samplelog.Record{
		Time:        now,
		BlueAvg:     blue,
		Active:      active,
		FilterLevel: level,
	}
	if err := l.sink.Append(rec); err != nil {
		l.logger.Warn("control: failed to write record, retrying", "cycle", n, "delay", l.cfg.RetryDelay, "error", err)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(l.cfg.RetryDelay):
		}
		if err := l.sink.Append(rec); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	return nil
}

func (l *Loop) sample(ctx context.Context) (float64, error) {
	blue, err := callTimeout(ctx, l.cfg.SampleTimeout, l.sampler.Sample)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(blue) || blue < 0 || blue > 1 {
		return 0, fmt.Errorf("sample %v out of range", blue)
	}
	return blue, nil
}

// errTimeout is returned when a call doesn't return before its timeout,
// whether or not it respects the context.
var errTimeout = errors.New("timed out")

// callTimeout calls fn with a context which times out after d. If fn doesn't
// return by then, it is abandoned and keeps running in the background.
func callTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w after %s", errTimeout, d)
		}
		return zero, ctx.Err()
	}
}
