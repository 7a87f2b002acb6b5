package gamma

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/pgaskin/bluelight/wayland/wltest"
)

type wlResult struct {
	a   Adapter
	err error
}

// wlStart starts NewWayland against srv and answers the initial roundtrip
// with the specified globals, returning the registry id.
func wlStart(t *testing.T, srv *wltest.Server, globals ...string) (uint32, <-chan wlResult) {
	t.Helper()
	ch := make(chan wlResult, 1)
	go func() {
		a, err := NewWayland(srv.Path, nil)
		ch <- wlResult{a, err}
	}()
	if err := srv.Accept(); err != nil {
		t.Fatalf("accept: %v", err)
	}
	m, err := srv.Expect(1, 1)
	if err != nil {
		t.Fatalf("expected get_registry: %v", err)
	}
	reg := m.Reader().ReadUint()
	if m, err = srv.Expect(1, 0); err != nil {
		t.Fatalf("expected sync: %v", err)
	}
	cb := m.Reader().ReadUint()
	for i, iface := range globals {
		if err := srv.Write(reg, 0, uint32(i+1), iface, uint32(1)); err != nil {
			t.Fatalf("write global: %v", err)
		}
	}
	if err := srv.Write(cb, 0, uint32(0)); err != nil {
		t.Fatalf("write done: %v", err)
	}
	if err := srv.Write(1, 1, cb); err != nil {
		t.Fatalf("write delete_id: %v", err)
	}
	return reg, ch
}

func wlWait(t *testing.T, ch <-chan wlResult) wlResult {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(5 * time.Second):
		t.Fatalf("NewWayland did not return")
		panic("unreachable")
	}
}

func TestWaylandApply(t *testing.T) {
	srv := wltest.NewServer(t)
	reg, ch := wlStart(t, srv, "wl_output", "zwlr_gamma_control_manager_v1")

	bind := func(iface string) uint32 {
		t.Helper()
		m, err := srv.Expect(reg, 0)
		if err != nil {
			t.Fatalf("expected bind for %s: %v", iface, err)
		}
		r := m.Reader()
		r.ReadUint()
		if got := r.ReadString(); got != iface {
			t.Fatalf("bound %s, want %s", got, iface)
		}
		if ver := r.ReadUint(); ver != 1 {
			t.Errorf("bound %s version %d, want 1", iface, ver)
		}
		return r.ReadUint()
	}
	output := bind("wl_output")
	manager := bind("zwlr_gamma_control_manager_v1")

	m, err := srv.Expect(manager, 0)
	if err != nil {
		t.Fatalf("expected get_gamma_control: %v", err)
	}
	r := m.Reader()
	control := r.ReadUint()
	if id := r.ReadUint(); id != output {
		t.Errorf("get_gamma_control output = %d, want %d", id, output)
	}

	res := wlWait(t, ch)
	if res.err != nil {
		t.Fatalf("NewWayland: %v", res.err)
	}
	defer res.a.Close()

	const size = 4
	if err := srv.Write(control, 0, uint32(size)); err != nil {
		t.Fatalf("write gamma_size: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ramp := MakeRamp(0.5)
	applied := make(chan error, 1)
	go func() {
		applied <- res.a.Apply(ctx, ramp)
	}()

	if m, err = srv.Expect(1, 0); err != nil {
		t.Fatalf("expected sync: %v", err)
	}
	if err := srv.Write(m.Reader().ReadUint(), 0, uint32(0)); err != nil {
		t.Fatalf("write done: %v", err)
	}
	if m, err = srv.Expect(control, 0); err != nil {
		t.Fatalf("expected set_gamma: %v", err)
	}
	if len(m.FDs) != 1 {
		t.Fatalf("set_gamma sent %d fds, want 1", len(m.FDs))
	}
	f := os.NewFile(uintptr(m.FDs[0]), "gamma")
	defer f.Close()

	buf := make([]byte, 3*size*2)
	if _, err := f.ReadAt(buf, 0); err != nil {
		t.Fatalf("read gamma table: %v", err)
	}
	rr, rg, rb := ramp.Resize(size)
	for i, want := range [][]uint16{rr, rg, rb} {
		for j := range size {
			if got := binary.NativeEndian.Uint16(buf[(i*size+j)*2:]); got != want[j] {
				t.Errorf("channel %d entry %d = %d, want %d", i, j, got, want[j])
			}
		}
	}

	if err := <-applied; err != nil {
		t.Errorf("apply: %v", err)
	}
}

func TestWaylandUnsupported(t *testing.T) {
	srv := wltest.NewServer(t)
	_, ch := wlStart(t, srv, "wl_output")

	res := wlWait(t, ch)
	if res.err == nil {
		res.a.Close()
		t.Fatalf("NewWayland succeeded without a gamma control manager")
	}
	if !errors.Is(res.err, errors.ErrUnsupported) {
		t.Errorf("NewWayland error %v does not wrap %v", res.err, errors.ErrUnsupported)
	}
}
