package ddc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"slices"
	"strconv"
	"strings"
)

// Monitor is a DRM connector with a connected monitor.
type Monitor struct {
	Connector string // e.g., card1-DP-2
	ID        string // from the EDID, see [EDIDID]
	I2C       []int  // buses exposed by the connector
}

// Monitors lists the connected monitors.
func Monitors() ([]Monitor, error) {
	return monitors(os.DirFS("/sys/class/drm"))
}

func monitors(drm fs.FS) ([]Monitor, error) {
	cfs, err := fs.ReadDir(drm, ".")
	if err != nil {
		return nil, fmt.Errorf("list drm nodes: %w", err)
	}
	var ms []Monitor
	for _, cf := range cfs {
		name := cf.Name()
		if !strings.HasPrefix(name, "card") || !strings.Contains(name, "-") {
			continue // not a connector
		}
		if buf, err := fs.ReadFile(drm, path.Join(name, "status")); err != nil || strings.TrimSpace(string(buf)) != "connected" {
			continue
		}
		buf, err := fs.ReadFile(drm, path.Join(name, "edid"))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read %s edid: %w", name, err)
		}
		id, ok := EDIDID(buf)
		if !ok {
			continue
		}
		m := Monitor{Connector: name, ID: id}
		if xs, err := fs.ReadDir(drm, name); err == nil {
			for _, x := range xs {
				if s, ok := strings.CutPrefix(x.Name(), "i2c-"); ok {
					if n, err := strconv.Atoi(s); err == nil {
						m.I2C = append(m.I2C, n)
					}
				}
			}
		}
		slices.Sort(m.I2C)
		ms = append(ms, m)
	}
	return ms, nil
}

// EDIDID returns the PNP vendor, product code, and serial number from an EDID
// in the form VVVPPPP-SSSSSSSS.
func EDIDID(buf []byte) (string, bool) {
	// https://en.wikipedia.org/wiki/Extended_Display_Identification_Data
	if len(buf) < 16 || !bytes.HasPrefix(buf, []byte{0x00, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x00}) {
		return "", false
	}
	const hex = "0123456789ABCDEF"
	var (
		vnd = binary.BigEndian.Uint16(buf[8:10])
		prd = buf[10:12]
		ser = buf[12:16]
	)
	return string([]byte{
		'A' - 1 + byte(0b11111&(vnd>>10)),
		'A' - 1 + byte(0b11111&(vnd>>5)),
		'A' - 1 + byte(0b11111&vnd),
		hex[prd[0]>>4], hex[prd[0]&0xf],
		hex[prd[1]>>4], hex[prd[1]&0xf],
		'-',
		hex[ser[0]>>4], hex[ser[0]&0xf],
		hex[ser[1]>>4], hex[ser[1]&0xf],
		hex[ser[2]>>4], hex[ser[2]&0xf],
		hex[ser[3]>>4], hex[ser[3]&0xf],
	}), true
}
