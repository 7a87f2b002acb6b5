// Package filter decides how strong the blue-light filter should be.
//
// Levels use 1 for no correction and lower values for stronger blue
// reduction, matching the ramps built by package gamma.
package filter

import (
	"math"
	"time"
)

// Default policy values.
const (
	DefaultReduced = 0.5
	DefaultNeutral = 1.0
	DefaultAlpha   = 0.1
)

// Policy selects the target filter level and smooths transitions toward it.
type Policy struct {
	Reduced float64 // target while active at night
	Neutral float64 // target otherwise
	Alpha   float64 // smoothing factor in [0, 1]
}

// DefaultPolicy returns the default policy, which reduces blue by half at
// night with a time constant of about 10 updates.
func DefaultPolicy() Policy {
	return Policy{
		Reduced: DefaultReduced,
		Neutral: DefaultNeutral,
		Alpha:   DefaultAlpha,
	}
}

// Target returns the level to move toward.
func (p Policy) Target(active, night bool) float64 {
	if night && active {
		return clamp(p.Reduced)
	}
	return clamp(p.Neutral)
}

// Smooth moves prev a fraction Alpha of the way toward target. The result is
// always between prev and target, and within [0, 1].
func (p Policy) Smooth(prev, target float64) float64 {
	prev, target = clamp(prev), clamp(target)
	next := prev + clamp(p.Alpha)*(target-prev)
	return min(max(next, min(prev, target)), max(prev, target))
}

// Night reports whether a time is within the night window.
type Night interface {
	IsNight(time.Time) bool
}

// Window is a night window between two local hours. It includes Start and
// excludes End, and wraps past midnight if End < Start. An End of 24 is
// midnight. If Start == End, it is never night.
type Window struct {
	Start int
	End   int
}

// DefaultWindow starts at 21:00 and ends at midnight.
var DefaultWindow = Window{Start: 21, End: 24}

// Contains checks whether an hour in [0, 24) is within the window.
func (w Window) Contains(hour int) bool {
	switch {
	case w.Start == w.End:
		return false
	case w.Start < w.End:
		return hour >= w.Start && hour < w.End
	default:
		return hour >= w.Start || hour < w.End
	}
}

func (w Window) IsNight(t time.Time) bool {
	return w.Contains(t.Hour())
}

// Estimator computes the next filter level.
type Estimator struct {
	Policy Policy
	Night  Night
}

// NewEstimator creates an Estimator. If night is nil, [DefaultWindow] is used.
func NewEstimator(policy Policy, night Night) Estimator {
	if night == nil {
		night = DefaultWindow
	}
	return Estimator{Policy: policy, Night: night}
}

// Next computes the next level for an hour of the day. Only [Window] nights
// can be evaluated by hour; for other ones, use [Estimator.NextAt].
func (e Estimator) Next(prev float64, active bool, hour int) float64 {
	var night bool
	if w, ok := e.Night.(Window); ok {
		night = w.Contains(hour)
	} else {
		now := time.Now()
		night = e.Night.IsNight(time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.Local))
	}
	return e.Policy.Smooth(prev, e.Policy.Target(active, night))
}

// NextAt computes the next level at a point in time.
func (e Estimator) NextAt(prev float64, active bool, t time.Time) float64 {
	return e.Policy.Smooth(prev, e.Policy.Target(active, e.Night.IsNight(t)))
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 1
	}
	return min(max(v, 0), 1)
}
