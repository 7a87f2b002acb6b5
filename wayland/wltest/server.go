//go:build linux

// Package wltest implements a scripted fake compositor for testing wayland
// clients over a real socket.
package wltest

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

// Timeout is the deadline for each socket operation.
var Timeout = 5 * time.Second

// Server accepts a single client connection.
type Server struct {
	Path string

	ln   *net.UnixListener
	conn *net.UnixConn
}

// NewServer listens on a socket in a temporary directory. It is closed when
// the test finishes.
func NewServer(tb testing.TB) *Server {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), "wayland-test")
	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		tb.Fatalf("listen: %v", err)
	}
	s := &Server{Path: path, ln: ln}
	tb.Cleanup(s.Close)
	return s
}

// Accept waits for the client to connect.
func (s *Server) Accept() error {
	if err := s.ln.SetDeadline(time.Now().Add(Timeout)); err != nil {
		return err
	}
	conn, err := s.ln.AcceptUnix()
	if err != nil {
		return err
	}
	s.conn = conn
	return nil
}

// Close closes the client connection and the listener.
func (s *Server) Close() {
	if s.conn != nil {
		s.conn.Close()
	}
	s.ln.Close()
}

// Message is a request sent by the client.
type Message struct {
	Object uint32
	Opcode uint16
	Args   []byte
	FDs    []int
}

// Reader returns a reader for the message arguments.
func (m Message) Reader() *Reader {
	return &Reader{b: m.Args}
}

// Reader decodes message arguments. Reads past the end return zero values.
type Reader struct {
	b []byte
}

func (r *Reader) ReadUint() uint32 {
	if len(r.b) < 4 {
		r.b = nil
		return 0
	}
	v := binary.NativeEndian.Uint32(r.b)
	r.b = r.b[4:]
	return v
}

func (r *Reader) ReadString() string {
	n := int(r.ReadUint())
	if n == 0 || len(r.b) < pad(n) {
		r.b = nil
		return ""
	}
	s := string(r.b[:n-1])
	r.b = r.b[pad(n):]
	return s
}

// Read reads the next request.
func (s *Server) Read() (Message, error) {
	var m Message
	if err := s.conn.SetReadDeadline(time.Now().Add(Timeout)); err != nil {
		return m, err
	}
	hdr := make([]byte, 8)
	oob := make([]byte, unix.CmsgSpace(4*8))
	n, oobn, _, _, err := s.conn.ReadMsgUnix(hdr, oob)
	if err != nil {
		return m, err
	}
	if n != 8 {
		return m, fmt.Errorf("short header (%d bytes)", n)
	}
	if oobn > 0 {
		scms, err := unix.ParseSocketControlMessage(oob[:oobn])
		if err != nil {
			return m, fmt.Errorf("parse control message: %w", err)
		}
		for _, scm := range scms {
			fds, err := unix.ParseUnixRights(&scm)
			if err != nil {
				return m, fmt.Errorf("parse rights: %w", err)
			}
			m.FDs = append(m.FDs, fds...)
		}
	}
	m.Object = binary.NativeEndian.Uint32(hdr)
	word := binary.NativeEndian.Uint32(hdr[4:])
	m.Opcode = uint16(word)
	size := int(word >> 16)
	if size < 8 {
		return m, fmt.Errorf("invalid size %d", size)
	}
	m.Args = make([]byte, size-8)
	if _, err := io.ReadFull(s.conn, m.Args); err != nil {
		return m, fmt.Errorf("read arguments: %w", err)
	}
	return m, nil
}

// Expect reads the next request, failing if it isn't the specified one.
func (s *Server) Expect(object uint32, opcode uint16) (Message, error) {
	m, err := s.Read()
	if err != nil {
		return m, err
	}
	if m.Object != object || m.Opcode != opcode {
		return m, fmt.Errorf("got request %d on object %d, expected %d on %d", m.Opcode, m.Object, opcode, object)
	}
	return m, nil
}

// Write sends an event. The arguments must be uint32, int32 or string.
func (s *Server) Write(object uint32, opcode uint16, args ...any) error {
	b := make([]byte, 8, 64)
	for _, arg := range args {
		switch v := arg.(type) {
		case uint32:
			b = binary.NativeEndian.AppendUint32(b, v)
		case int32:
			b = binary.NativeEndian.AppendUint32(b, uint32(v))
		case string:
			n := len(v) + 1
			b = binary.NativeEndian.AppendUint32(b, uint32(n))
			b = append(b, v...)
			b = append(b, make([]byte, pad(n)-len(v))...)
		default:
			return fmt.Errorf("unsupported argument type %T", arg)
		}
	}
	binary.NativeEndian.PutUint32(b, object)
	binary.NativeEndian.PutUint32(b[4:], uint32(len(b))<<16|uint32(opcode))
	if err := s.conn.SetWriteDeadline(time.Now().Add(Timeout)); err != nil {
		return err
	}
	_, err := s.conn.Write(b)
	return err
}

func pad(n int) int {
	return (n + 3) &^ 3
}
