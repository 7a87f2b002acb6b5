package gamma

import "testing"

func TestDDCGain(t *testing.T) {
	for _, tc := range []struct {
		initial, max uint16
		level        float64
		gain         uint16
	}{
		{80, 100, 1, 80},
		{80, 100, 0.5, 40},
		{80, 100, 0.95, 76},
		{80, 100, 0, 0},
		{80, 100, -1, 0},
		{80, 100, 2, 80},
		{120, 100, 1, 100},
	} {
		if gain := ddcGain(tc.initial, tc.max, tc.level); gain != tc.gain {
			t.Errorf("ddcGain(%d, %d, %v) = %d, want %d", tc.initial, tc.max, tc.level, gain, tc.gain)
		}
	}
}
