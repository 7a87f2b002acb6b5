package gamma

import (
	"bytes"
	"slices"
	"testing"
)

func TestXRandRArgs(t *testing.T) {
	for _, tc := range []struct {
		level float64
		args  []string
	}{
		{1, []string{"--output", "eDP-1", "--gamma", "1:1:1.00", "--brightness", "1.00"}},
		{0.9, []string{"--output", "eDP-1", "--gamma", "1:1:1.00", "--brightness", "0.95"}},
		{0.5, []string{"--output", "eDP-1", "--gamma", "1:1:0.60", "--brightness", "0.75"}},
		{0, []string{"--output", "eDP-1", "--gamma", "1:1:0.10", "--brightness", "0.50"}},
		{-3, []string{"--output", "eDP-1", "--gamma", "1:1:0.10", "--brightness", "0.50"}},
	} {
		if args := xrandrArgs("eDP-1", tc.level); !slices.Equal(args, tc.args) {
			t.Errorf("xrandrArgs(%v) = %q, want %q", tc.level, args, tc.args)
		}
	}
}

func TestParseXRandROutputs(t *testing.T) {
	const query = `Screen 0: minimum 320 x 200, current 3840 x 1080, maximum 16384 x 16384
eDP-1 connected primary 1920x1080+0+0 (normal left inverted right x axis y axis) 344mm x 194mm
   1920x1080     60.00*+  59.97    59.96    59.93
   1680x1050     59.95    59.88
HDMI-1 disconnected (normal left inverted right x axis y axis)
DP-1 connected 1920x1080+1920+0 (normal left inverted right x axis y axis) 527mm x 296mm
   1920x1080     60.00*+
`
	if outputs := parseXRandROutputs(bytes.NewBufferString(query)); !slices.Equal(outputs, []string{"eDP-1", "DP-1"}) {
		t.Errorf("parseXRandROutputs = %q", outputs)
	}
}
