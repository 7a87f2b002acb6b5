package gamma

import (
	"math"
	"testing"
)

func TestMakeRamp(t *testing.T) {
	neutral := MakeRamp(1)
	for i := range RampSize {
		if want := uint16(i) << 8; neutral.R[i] != want || neutral.G[i] != want || neutral.B[i] != want {
			t.Fatalf("neutral ramp entry %d = (%d, %d, %d), want %d", i, neutral.R[i], neutral.G[i], neutral.B[i], want)
		}
	}
	if !neutral.Neutral() {
		t.Errorf("level 1 ramp should be neutral")
	}

	for _, level := range []float64{0, 0.1, 0.25, 0.5, 0.651, 0.95, 1} {
		r := MakeRamp(level)
		for i := 1; i < RampSize; i++ {
			if r.R[i] < r.R[i-1] || r.G[i] < r.G[i-1] {
				t.Errorf("level %.3f: non-blue channel decreases at %d", level, i)
			}
			if r.B[i] < r.B[i-1] {
				t.Errorf("level %.3f: blue channel decreases at %d", level, i)
			}
		}
		for i := range RampSize {
			if r.B[i] > neutral.B[i] {
				t.Errorf("level %.3f: blue[%d] = %d exceeds neutral %d", level, i, r.B[i], neutral.B[i])
			}
			if r.R[i] != neutral.R[i] || r.G[i] != neutral.G[i] {
				t.Errorf("level %.3f: red/green[%d] changed", level, i)
			}
		}
	}

	if r := MakeRamp(0.5); r.B[255] != 127<<8 || r.B[3] != 1<<8 {
		t.Errorf("level 0.5: blue[255] = %d, blue[3] = %d, want %d, %d", r.B[255], r.B[3], 127<<8, 1<<8)
	}
	if r := MakeRamp(0); r.B[255] != 0 {
		t.Errorf("level 0: blue[255] = %d, want 0", r.B[255])
	}
}

func TestMakeRampClamp(t *testing.T) {
	for _, tc := range []struct {
		level float64
		want  float64
	}{
		{-1, 0},
		{-0.0001, 0},
		{0.3, 0.3},
		{1.5, 1},
		{math.Inf(1), 1},
		{math.Inf(-1), 0},
		{math.NaN(), 1},
	} {
		if r := MakeRamp(tc.level); r.Level != tc.want {
			t.Errorf("MakeRamp(%v).Level = %v, want %v", tc.level, r.Level, tc.want)
		}
	}
	if *MakeRamp(2) != *MakeRamp(1) {
		t.Errorf("level above 1 should produce the neutral ramp")
	}
}

func TestRampResize(t *testing.T) {
	r := MakeRamp(0.5)

	rr, rg, rb := r.Resize(RampSize)
	for i := range RampSize {
		if rr[i] != r.R[i] || rg[i] != r.G[i] || rb[i] != r.B[i] {
			t.Fatalf("resize to %d changed entry %d", RampSize, i)
		}
	}

	for _, n := range []int{1, 2, 17, 1024, 4096} {
		rr, rg, rb := r.Resize(n)
		if len(rr) != n || len(rg) != n || len(rb) != n {
			t.Fatalf("resize to %d: got lengths %d %d %d", n, len(rr), len(rg), len(rb))
		}
		if rr[0] != r.R[0] || rb[0] != r.B[0] {
			t.Errorf("resize to %d: first entry changed", n)
		}
		if n > 1 && (rr[n-1] != r.R[RampSize-1] || rb[n-1] != r.B[RampSize-1]) {
			t.Errorf("resize to %d: last entry = (%d, %d), want (%d, %d)", n, rr[n-1], rb[n-1], r.R[RampSize-1], r.B[RampSize-1])
		}
		for i := 1; i < n; i++ {
			if rr[i] < rr[i-1] || rg[i] < rg[i-1] || rb[i] < rb[i-1] {
				t.Errorf("resize to %d: decreases at %d", n, i)
				break
			}
		}
	}

	if rr, _, _ := r.Resize(0); len(rr) != 0 {
		t.Errorf("resize to 0 should be empty")
	}
}
