//go:build linux

// Package ddc adjusts the color gains of external monitors over DDC/CI.
package ddc

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

const _I2C_SLAVE = 0x0703

// CI is an open connection to an I2C bus with a DDC/CI slave. It is safe for
// concurrent use.
type CI struct {
	bus int

	mu   sync.Mutex
	f    *os.File
	next time.Time
}

// Open opens a DDC/CI I2C bus.
func Open(bus int) (*CI, error) {
	f, err := os.OpenFile("/dev/i2c-"+strconv.Itoa(bus), os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	if err := unix.IoctlSetInt(int(f.Fd()), _I2C_SLAVE, addrDDCCI); err != nil {
		f.Close()
		return nil, fmt.Errorf("set i2c bus %d slave address 0x%X: %w", bus, addrDDCCI, err)
	}
	return &CI{bus: bus, f: f}, nil
}

// Bus returns the I2C bus number.
func (d *CI) Bus() int {
	return d.bus
}

// GetVCP gets the current value and maximum of a VCP.
func (d *CI) GetVCP(vcp byte) (val, max uint16, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.tx([]byte{opGetVCP, vcp}, time.Millisecond*40); err != nil {
		return 0, 0, err
	}
	for range 5 {
		buf, err := d.rx()
		if err == ErrNoReply || (err == nil && len(buf) == 0) {
			d.next = time.Now().Add(time.Millisecond * 40)
			continue
		}
		if err != nil {
			return 0, 0, err
		}
		return parseVCPReply(buf, vcp)
	}
	return 0, 0, ErrNoReply
}

// SetVCP sets a VCP.
func (d *CI) SetVCP(vcp byte, val uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.tx([]byte{opSetVCP, vcp, byte(val >> 8), byte(val)}, time.Millisecond*50)
}

// Close closes the device.
func (d *CI) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.f.Close()
}

func (d *CI) tx(cmd []byte, wait time.Duration) error {
	d.wait()
	_, err := d.f.Write(encode(cmd))
	if err == nil {
		d.next = time.Now().Add(wait)
	}
	return err
}

func (d *CI) rx() ([]byte, error) {
	d.wait()

	var hdr [2]byte
	n, err := d.f.Read(hdr[:])
	if err == nil && n != len(hdr) {
		err = fmt.Errorf("short ddc header read, expected %d bytes, got %d", len(hdr), n)
	}
	if err != nil {
		return nil, err
	}
	size, err := checkHeader(hdr)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, size+1)
	n, err = d.f.Read(buf)
	if err == nil && n != len(buf) {
		err = fmt.Errorf("short ddc payload read, expected %d bytes, got %d", len(buf), n)
	}
	if err != nil {
		return nil, err
	}
	return decode(hdr, buf)
}

// wait blocks until the monitor is ready for the next command.
func (d *CI) wait() {
	if t := time.Until(d.next); t > 0 {
		time.Sleep(t)
	}
}
