package gamma

import "math"

// RampSize is the number of entries per channel in a [Ramp].
const RampSize = 256

// Ramp is a per-channel color correction table for a filter level. It is
// immutable once created.
type Ramp struct {
	Level   float64 // clamped filter level the ramp was built from
	R, G, B [RampSize]uint16
}

// ClampLevel clamps a filter level into [0, 1]. NaN is treated as neutral.
func ClampLevel(level float64) float64 {
	switch {
	case math.IsNaN(level):
		return 1
	case level < 0:
		return 0
	case level > 1:
		return 1
	}
	return level
}

// MakeRamp builds the correction table for a filter level, where 1 is
// neutral and 0 removes all blue. Red and green are left as the identity, and
// the blue channel is scaled by the level. Levels outside [0, 1] are clamped.
func MakeRamp(level float64) *Ramp {
	level = ClampLevel(level)
	r := &Ramp{Level: level}
	for i := range RampSize {
		v := uint16(min(i, 255)) << 8
		r.R[i], r.G[i] = v, v
		r.B[i] = uint16(min(int(math.Floor(float64(i)*level)), 255)) << 8
	}
	return r
}

// Neutral reports whether the ramp applies no correction.
func (r *Ramp) Neutral() bool {
	return r.Level == 1
}

// Resize linearly resamples the ramp to n entries per channel, which is what
// most outputs expect (the gamma size is usually 1024 or 4096, not 256).
func (r *Ramp) Resize(n int) (rr, rg, rb []uint16) {
	rr, rg, rb = make([]uint16, n), make([]uint16, n), make([]uint16, n)
	if n == RampSize {
		copy(rr, r.R[:])
		copy(rg, r.G[:])
		copy(rb, r.B[:])
		return
	}
	resample(rr, &r.R)
	resample(rg, &r.G)
	resample(rb, &r.B)
	return
}

func resample[C ~uint16](dst []C, src *[RampSize]uint16) {
	switch len(dst) {
	case 0:
		return
	case 1:
		dst[0] = C(src[0])
		return
	}
	for index := range dst {
		pos := float64(index) / float64(len(dst)-1) * (RampSize - 1)
		lo := int(pos)
		if lo >= RampSize-1 {
			dst[index] = C(src[RampSize-1])
			continue
		}
		frac := pos - float64(lo)
		dst[index] = C(math.Round(float64(src[lo])*(1-frac) + float64(src[lo+1])*frac))
	}
}
