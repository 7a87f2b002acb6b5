package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pgaskin/bluelight/filter"
	"github.com/pgaskin/bluelight/screen"
)

// envPrefix is prepended to every configuration variable.
const envPrefix = "BLUELIGHT_"

// Config is the daemon configuration.
type Config struct {
	LogFile           string
	Interval          time.Duration
	InactivityTimeout time.Duration
	SampleTimeout     time.Duration
	ApplyTimeout      time.Duration
	IdlePoll          time.Duration
	Policy            filter.Policy
	Night             filter.Night
	Region            screen.Region
	Backend           string
	Outputs           []string // xrandr outputs
	Monitors          []string // ddc monitor edid ids
	Debug             bool
}

// LoadConfig reads the configuration from the environment. Unset variables
// use the default, and any invalid value is an error.
func LoadConfig(getenv func(string) string) (Config, error) {
	e := &env{getenv: getenv}

	c := Config{
		LogFile:       e.str("LOG_FILE", "blue_light_log.csv"),
		Interval:      e.duration("INTERVAL", time.Minute),
		SampleTimeout: e.duration("SAMPLE_TIMEOUT", 10*time.Second),
		ApplyTimeout:  e.duration("APPLY_TIMEOUT", 10*time.Second),
		IdlePoll:      e.duration("IDLE_POLL", 5*time.Second),
		Policy: filter.Policy{
			Reduced: e.float("REDUCED_LEVEL", filter.DefaultReduced),
			Neutral: e.float("NEUTRAL_LEVEL", filter.DefaultNeutral),
			Alpha:   e.float("ALPHA", filter.DefaultAlpha),
		},
		Backend:  e.str("BACKEND", "auto"),
		Outputs:  e.list("XRANDR_OUTPUT"),
		Monitors: e.list("DDC_MONITOR"),
		Debug:    e.bool("DEBUG", false),
	}
	c.InactivityTimeout = e.duration("INACTIVITY_TIMEOUT", c.Interval)

	if s := e.str("REGION", ""); s != "" {
		r, err := screen.ParseRegion(s)
		if err != nil {
			e.fail("REGION", err)
		}
		c.Region = r
	} else {
		c.Region = screen.DefaultRegion
	}

	if e.set("LATITUDE") || e.set("LONGITUDE") {
		c.Night = filter.Solar{
			Latitude:  e.float("LATITUDE", 0),
			Longitude: e.float("LONGITUDE", 0),
			Elevation: e.float("SOLAR_ELEVATION", filter.DefaultElevation),
		}
	} else {
		c.Night = filter.Window{
			Start: e.int("NIGHT_START", filter.DefaultWindow.Start),
			End:   e.int("NIGHT_END", filter.DefaultWindow.End),
		}
	}

	e.check(c)
	return c, errors.Join(e.errs...)
}

func (e *env) check(c Config) {
	for _, d := range []struct {
		key string
		val time.Duration
	}{
		{"INTERVAL", c.Interval},
		{"INACTIVITY_TIMEOUT", c.InactivityTimeout},
		{"SAMPLE_TIMEOUT", c.SampleTimeout},
		{"APPLY_TIMEOUT", c.ApplyTimeout},
		{"IDLE_POLL", c.IdlePoll},
	} {
		if d.val <= 0 {
			e.fail(d.key, errors.New("must be positive"))
		}
	}
	if !inUnit(c.Policy.Reduced) {
		e.fail("REDUCED_LEVEL", errors.New("must be within [0, 1]"))
	}
	if !inUnit(c.Policy.Neutral) {
		e.fail("NEUTRAL_LEVEL", errors.New("must be within [0, 1]"))
	}
	if !inUnit(c.Policy.Alpha) || c.Policy.Alpha == 0 {
		e.fail("ALPHA", errors.New("must be within (0, 1]"))
	}
	switch n := c.Night.(type) {
	case filter.Window:
		if n.Start < 0 || n.Start > 23 {
			e.fail("NIGHT_START", errors.New("must be an hour within [0, 23]"))
		}
		if n.End < 0 || n.End > 24 {
			e.fail("NIGHT_END", errors.New("must be an hour within [0, 24]"))
		}
	case filter.Solar:
		if !e.set("LATITUDE") || !e.set("LONGITUDE") {
			e.fail("LATITUDE", errors.New("both latitude and longitude must be set"))
		}
		if n.Latitude < -90 || n.Latitude > 90 {
			e.fail("LATITUDE", errors.New("must be within [-90, 90]"))
		}
		if n.Longitude < -180 || n.Longitude > 180 {
			e.fail("LONGITUDE", errors.New("must be within [-180, 180]"))
		}
		if n.Elevation < -90 || n.Elevation > 90 {
			e.fail("SOLAR_ELEVATION", errors.New("must be within [-90, 90]"))
		}
	}
}

func inUnit(v float64) bool {
	return v >= 0 && v <= 1 // false for NaN
}

// env reads prefixed environment variables, collecting errors.
type env struct {
	getenv func(string) string
	errs   []error
}

func (e *env) fail(key string, err error) {
	e.errs = append(e.errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
}

func (e *env) get(key string) string {
	return strings.TrimSpace(e.getenv(envPrefix + key))
}

func (e *env) set(key string) bool {
	return e.get(key) != ""
}

func (e *env) str(key, def string) string {
	if v := e.get(key); v != "" {
		return v
	}
	return def
}

func (e *env) int(key string, def int) int {
	if v := e.get(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			e.fail(key, err)
			return def
		}
		return i
	}
	return def
}

func (e *env) float(key string, def float64) float64 {
	if v := e.get(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.fail(key, err)
			return def
		}
		return f
	}
	return def
}

func (e *env) bool(key string, def bool) bool {
	if v := e.get(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.fail(key, err)
			return def
		}
		return b
	}
	return def
}

// duration accepts Go duration syntax or a plain number of seconds.
func (e *env) duration(key string, def time.Duration) time.Duration {
	if v := e.get(key); v != "" {
		if s, err := strconv.ParseFloat(v, 64); err == nil {
			return time.Duration(s * float64(time.Second))
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			e.fail(key, err)
			return def
		}
		return d
	}
	return def
}

func (e *env) list(key string) []string {
	var result []string
	for p := range strings.SplitSeq(e.get(key), ",") {
		if t := strings.TrimSpace(p); t != "" {
			result = append(result, t)
		}
	}
	return result
}
