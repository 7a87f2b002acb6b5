package activity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// IdleSource reads the time since the last user input from the OS.
type IdleSource interface {
	Name() string
	Idle(ctx context.Context) (time.Duration, error)
	Close() error
}

// NewIdleSource returns the first idle source which works for the current
// session. If logger is not nil, it is used for debug logs from this package.
func NewIdleSource(logger *slog.Logger) (IdleSource, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	var errs []error
	for _, fn := range idleSources {
		src, err := fn(logger)
		if err != nil {
			logger.Debug("activity: idle source unavailable", "error", err)
			errs = append(errs, err)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, err = src.Idle(ctx)
		cancel()
		if err != nil {
			logger.Debug("activity: idle source not working", "source", src.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
			src.Close()
			continue
		}
		logger.Debug("activity: using idle source", "source", src.Name())
		return src, nil
	}
	return nil, fmt.Errorf("activity: no idle source available: %w", errors.Join(append(errs, errors.ErrUnsupported)...))
}

// Watch polls src every interval and reports activity to tr whenever the idle
// time shows that input happened since the previous poll. It returns when ctx
// is done. Errors are logged and the source is polled again on the next tick.
func Watch(ctx context.Context, src IdleSource, tr *Tracker, interval time.Duration, logger *slog.Logger) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var w idleWatcher
	for {
		idle, err := src.Idle(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("activity: failed to read idle time", "source", src.Name(), "error", err)
		} else if at, ok := w.update(time.Now(), idle, interval); ok {
			tr.ReportAt(at)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Start runs [Watch] in a new goroutine. The returned function stops it and
// waits for it to return, after which src may be closed.
func Start(ctx context.Context, src IdleSource, tr *Tracker, interval time.Duration, logger *slog.Logger) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		Watch(ctx, src, tr, interval, logger)
	}()
	return func() {
		cancel()
		<-done
	}
}

// idleWatcher converts idle time samples into activity timestamps.
type idleWatcher struct {
	prev time.Duration
	ok   bool
}

func (w *idleWatcher) update(now time.Time, idle, interval time.Duration) (time.Time, bool) {
	reset := w.ok && idle < w.prev
	w.prev, w.ok = idle, true
	if reset || idle < interval {
		return now.Add(-idle), true
	}
	return time.Time{}, false
}
