package gamma

import (
	"context"
	"errors"
	"math"
	"slices"
	"strings"
	"testing"
)

func TestGSettingsTemperature(t *testing.T) {
	for _, tc := range []struct {
		level float64
		want  uint32
	}{
		{1, 6500},
		{0, 3000},
		{0.5, 4750},
		{0.95, 6325},
		{-1, 3000},
		{2, 6500},
		{math.NaN(), 6500},
	} {
		if got := gsettingsTemperature(tc.level); got != tc.want {
			t.Errorf("gsettingsTemperature(%v) = %d, want %d", tc.level, got, tc.want)
		}
	}
}

// gsettingsRecorder fakes the gsettings command with the initial settings in
// get, recording every set.
type gsettingsRecorder struct {
	get  map[string]string
	sets []string
	err  error
}

func (r *gsettingsRecorder) run(ctx context.Context, args ...string) (string, error) {
	if len(args) < 3 || args[1] != gsettingsSchema {
		return "", errors.New("unexpected arguments: " + strings.Join(args, " "))
	}
	switch args[0] {
	case "get":
		return r.get[args[2]], nil
	case "set":
		if r.err != nil {
			return "", r.err
		}
		r.sets = append(r.sets, strings.Join(args[2:], "="))
		return "", nil
	}
	return "", errors.New("unexpected command " + args[0])
}

func (r *gsettingsRecorder) take() []string {
	sets := r.sets
	r.sets = nil
	return sets
}

func TestGSettingsApply(t *testing.T) {
	rec := &gsettingsRecorder{get: map[string]string{
		"night-light-enabled":            "false",
		"night-light-schedule-automatic": "true",
		"night-light-temperature":        "uint32 2700",
	}}
	a, err := newGSettings(rec.run, nil)
	if err != nil {
		t.Fatalf("newGSettings: %v", err)
	}
	ctx := context.Background()

	for _, step := range []struct {
		level float64
		sets  []string
	}{
		{1, nil},
		{0.5, []string{"night-light-enabled=true", "night-light-schedule-automatic=false", "night-light-temperature=4750"}},
		{0.4, []string{"night-light-temperature=4400"}},
		{1, []string{"night-light-enabled=false"}},
		{1, nil},
		{0.95, []string{"night-light-enabled=true", "night-light-schedule-automatic=false", "night-light-temperature=6325"}},
	} {
		if err := a.Apply(ctx, MakeRamp(step.level)); err != nil {
			t.Fatalf("Apply(%v): %v", step.level, err)
		}
		if sets := rec.take(); !slices.Equal(sets, step.sets) {
			t.Errorf("Apply(%v) set %q, want %q", step.level, sets, step.sets)
		}
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	want := []string{"night-light-enabled=false", "night-light-schedule-automatic=true", "night-light-temperature=uint32 2700"}
	if sets := rec.take(); !slices.Equal(sets, want) {
		t.Errorf("Close set %q, want %q", sets, want)
	}
}

func TestGSettingsApplyError(t *testing.T) {
	rec := &gsettingsRecorder{get: map[string]string{}}
	a, err := newGSettings(rec.run, nil)
	if err != nil {
		t.Fatalf("newGSettings: %v", err)
	}
	rec.err = errors.New("No such schema")

	err = a.Apply(context.Background(), MakeRamp(0.5))
	var ae *ApplyError
	if !errors.As(err, &ae) || ae.Backend != "gsettings" || !errors.Is(err, rec.err) {
		t.Errorf("Apply error = %v, want an *ApplyError wrapping %v", err, rec.err)
	}

	// not marked as enabled, so the next apply retries it
	rec.err = nil
	if err := a.Apply(context.Background(), MakeRamp(0.5)); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if sets := rec.take(); len(sets) != 3 {
		t.Errorf("Apply after error set %q, want enable, schedule and temperature", sets)
	}
}
