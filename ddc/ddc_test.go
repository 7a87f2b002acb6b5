package ddc

import (
	"bytes"
	"errors"
	"io/fs"
	"slices"
	"testing"
	"testing/fstest"
)

func TestEncode(t *testing.T) {
	if b, exp := encode([]byte{opSetVCP, VCPBlueGain, 0x00, 0x32}), []byte{0x51, 0x84, 0x03, 0x1A, 0x00, 0x32, 0x90}; !bytes.Equal(b, exp) {
		t.Errorf("expected % X, got % X", exp, b)
	}
}

// reply builds a monitor-to-host packet.
func reply(payload ...byte) ([2]byte, []byte) {
	hdr := [2]byte{addrDDCCI << 1, 0x80 | byte(len(payload))}
	ck := byte(0x50) ^ hdr[0] ^ hdr[1]
	for _, b := range payload {
		ck ^= b
	}
	return hdr, append(payload, ck)
}

func TestDecode(t *testing.T) {
	hdr, buf := reply(opGetVCPReply, 0x00, VCPBlueGain, 0x00, 0x00, 0x64, 0x00, 0x32)

	n, err := checkHeader(hdr)
	if err != nil || n != 8 {
		t.Fatalf("unexpected header result %d, %v", n, err)
	}
	payload, err := decode(hdr, buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	val, max, err := parseVCPReply(payload, VCPBlueGain)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != 50 || max != 100 {
		t.Errorf("expected 50/100, got %d/%d", val, max)
	}

	buf[3] ^= 1
	if _, err := decode(hdr, buf); !errors.Is(err, ErrChecksum) {
		t.Errorf("expected checksum error, got %v", err)
	}
}

func TestCheckHeader(t *testing.T) {
	for _, tc := range []struct {
		hdr [2]byte
		err error
	}{
		{[2]byte{0x00, 0x80}, ErrNoReply},
		{[2]byte{0x20, 0x88}, ErrBadReply},
		{[2]byte{0x6E, 0x08}, ErrBadReply},
		{[2]byte{0x6E, 0x88}, nil},
	} {
		if _, err := checkHeader(tc.hdr); !errors.Is(err, tc.err) {
			t.Errorf("% X: expected %v, got %v", tc.hdr, tc.err, err)
		}
	}
}

func TestParseVCPReply(t *testing.T) {
	for _, tc := range []struct {
		buf []byte
		err error
	}{
		{[]byte{0x02, 0x00, 0x1A, 0x00, 0x00, 0x64, 0x00, 0x32}, nil},
		{[]byte{0x02, 0x01, 0x1A, 0x00, 0x00, 0x00, 0x00, 0x00}, ErrUnsupportedVCP},
		{[]byte{0x02, 0x05, 0x1A, 0x00, 0x00, 0x64, 0x00, 0x32}, ErrBadReply},
		{[]byte{0x02, 0x00, 0x10, 0x00, 0x00, 0x64, 0x00, 0x32}, ErrBadReply},
		{[]byte{0x07, 0x00, 0x1A, 0x00, 0x00, 0x64, 0x00, 0x32}, ErrBadReply},
		{[]byte{0x02, 0x00, 0x1A}, ErrBadReply},
	} {
		if _, _, err := parseVCPReply(tc.buf, VCPBlueGain); !errors.Is(err, tc.err) {
			t.Errorf("% X: expected %v, got %v", tc.buf, tc.err, err)
		}
	}
}

var testEDID = []byte{
	0x00, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x00,
	0x10, 0xAC, // DEL
	0xF4, 0x40,
	0x4C, 0x4B, 0x4A, 0x43,
	0x01, 0x1E, 0x01, 0x04,
}

func TestEDIDID(t *testing.T) {
	if id, ok := EDIDID(testEDID); !ok || id != "DELF440-4C4B4A43" {
		t.Errorf("unexpected id %q", id)
	}
	if _, ok := EDIDID(testEDID[:12]); ok {
		t.Errorf("expected short edid to be rejected")
	}
	if _, ok := EDIDID(append([]byte{0x01}, testEDID[1:]...)); ok {
		t.Errorf("expected bad header to be rejected")
	}
}

func TestMonitors(t *testing.T) {
	dir := &fstest.MapFile{Mode: fs.ModeDir | 0o755}
	ms, err := monitors(fstest.MapFS{
		"card1":                    dir,
		"card1/i2c-1":              dir,
		"card1-DP-1/status":        {Data: []byte("connected\n")},
		"card1-DP-1/edid":          {Data: testEDID},
		"card1-DP-1/i2c-7":         dir,
		"card1-DP-1/i2c-3":         dir,
		"card1-HDMI-A-1/status":    {Data: []byte("disconnected\n")},
		"card1-HDMI-A-1/edid":      {Data: testEDID},
		"card1-eDP-1/status":       {Data: []byte("connected\n")},
		"card1-eDP-1/edid":         {Data: nil},
		"card1-Writeback-1/status": {Data: []byte("unknown\n")},
		"version":                  {Data: []byte("drm 1.1.0\n")},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ms) != 1 {
		t.Fatalf("expected 1 monitor, got %+v", ms)
	}
	if m := ms[0]; m.Connector != "card1-DP-1" || m.ID != "DELF440-4C4B4A43" || !slices.Equal(m.I2C, []int{3, 7}) {
		t.Errorf("unexpected monitor %+v", m)
	}
}
