package ddc

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// https://glenwing.github.io/docs/VESA-DDCCI-1.1.pdf

const (
	addrDDCCI = 0x37
	addrHost  = 0x51
)

const (
	opGetVCP      = 0x01
	opGetVCPReply = 0x02
	opSetVCP      = 0x03
)

// Color control VCPs (MCCS 2.2).
const (
	VCPBrightness = 0x10
	VCPRedGain    = 0x16
	VCPGreenGain  = 0x18
	VCPBlueGain   = 0x1A
)

var (
	ErrChecksum       = errors.New("invalid ddc checksum")
	ErrBadReply       = errors.New("bad ddc reply")
	ErrNoReply        = errors.New("no ddc reply")
	ErrUnsupportedVCP = errors.New("unsupported ddc vcp code")
)

// encode builds a host-to-monitor packet (excluding the slave address).
func encode(cmd []byte) []byte {
	buf := append([]byte{addrHost, 0x80 | byte(len(cmd))}, cmd...)
	ck := byte(addrDDCCI << 1)
	for _, b := range buf {
		ck ^= b
	}
	return append(buf, ck)
}

// checkHeader validates a reply header, returning the payload length.
func checkHeader(hdr [2]byte) (int, error) {
	switch addr := hdr[0] >> 1; {
	case addr == 0:
		return 0, ErrNoReply
	case addr != addrDDCCI:
		return 0, fmt.Errorf("%w: source address 0x%X", ErrBadReply, addr)
	case hdr[1]&0x80 == 0:
		return 0, fmt.Errorf("%w: length flag not set", ErrBadReply)
	}
	return int(hdr[1] &^ 0x80), nil
}

// decode verifies the checksum of a reply payload (followed by the checksum
// byte) and returns the payload.
func decode(hdr [2]byte, buf []byte) ([]byte, error) {
	if len(buf) == 0 {
		return nil, fmt.Errorf("%w: missing checksum", ErrBadReply)
	}
	ck := byte(addrHost - 1)
	for _, b := range hdr {
		ck ^= b
	}
	for _, b := range buf {
		ck ^= b
	}
	if ck != 0 {
		return nil, ErrChecksum
	}
	return buf[:len(buf)-1], nil
}

// parseVCPReply parses the payload of a VCP feature reply.
func parseVCPReply(buf []byte, vcp byte) (val, max uint16, err error) {
	if len(buf) != 8 {
		return 0, 0, fmt.Errorf("%w: unexpected vcp reply length %d", ErrBadReply, len(buf))
	}
	if op := buf[0]; op != opGetVCPReply {
		return 0, 0, fmt.Errorf("%w: unexpected reply opcode 0x%02X", ErrBadReply, op)
	}
	switch result := buf[1]; result {
	case 0x00:
	case 0x01:
		return 0, 0, fmt.Errorf("%w 0x%02X", ErrUnsupportedVCP, vcp)
	default:
		return 0, 0, fmt.Errorf("%w: unexpected result code %d", ErrBadReply, result)
	}
	if got := buf[2]; got != vcp {
		return 0, 0, fmt.Errorf("%w: reply for vcp 0x%02X (requested 0x%02X)", ErrBadReply, got, vcp)
	}
	return binary.BigEndian.Uint16(buf[6:8]), binary.BigEndian.Uint16(buf[4:6]), nil
}
