package filter

import (
	"time"

	"github.com/nathan-osman/go-sunrise"
)

// DefaultElevation is the solar elevation in degrees below which it is
// considered night (civil twilight).
const DefaultElevation = -6

// Solar considers it night when the sun is below Elevation degrees at the
// provided latitude and longitude.
type Solar struct {
	Latitude  float64
	Longitude float64
	Elevation float64
}

func (s Solar) IsNight(t time.Time) bool {
	return sunrise.Elevation(s.Latitude, s.Longitude, t) < s.Elevation
}
