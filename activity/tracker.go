// Package activity tracks whether the user is currently interacting with the
// computer.
package activity

import (
	"sync/atomic"
	"time"
)

// Tracker holds the time of the last user activity. It is safe for concurrent
// usage by any number of reporters and readers.
type Tracker struct {
	last atomic.Int64 // unix nanoseconds
}

// NewTracker creates a Tracker with the last activity set to now.
func NewTracker() *Tracker {
	return NewTrackerAt(time.Now())
}

// NewTrackerAt creates a Tracker with the last activity set to t.
func NewTrackerAt(t time.Time) *Tracker {
	var tr Tracker
	tr.last.Store(t.UnixNano())
	return &tr
}

// Report records activity now.
func (tr *Tracker) Report() {
	tr.ReportAt(time.Now())
}

// ReportAt records activity at t. If a later activity has already been
// reported, it does nothing.
func (tr *Tracker) ReportAt(t time.Time) {
	ns := t.UnixNano()
	for {
		cur := tr.last.Load()
		if ns <= cur || tr.last.CompareAndSwap(cur, ns) {
			return
		}
	}
}

// Last returns the time of the last activity.
func (tr *Tracker) Last() time.Time {
	return time.Unix(0, tr.last.Load())
}

// Active checks whether there was activity less than timeout before now.
func (tr *Tracker) Active(now time.Time, timeout time.Duration) bool {
	return now.Sub(tr.Last()) < timeout
}
