package gamma

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"
	"unsafe"

	gowl "github.com/friedelschoen/wayland"
	"github.com/pgaskin/bluelight/wayland"
	"github.com/pgaskin/bluelight/wayland/wl"
	"github.com/pgaskin/bluelight/wayland/zwlr"
	"golang.org/x/sys/unix"
)

// wlInitTimeout limits the initial roundtrip to the compositor.
const wlInitTimeout = 5 * time.Second

// wlAdapter sets gamma ramps using wlr-gamma-control-unstable-v1. Only one
// application may manage the gamma ramps of an output at a time (otherwise
// the compositor sends failed for it, which is logged).
type wlAdapter struct {
	conn   *wayland.Connection
	logger *slog.Logger
	gc     *wlGammaControl
}

// NewWayland connects to the specified wayland display (empty for the
// default) to set the gamma ramps of all outputs. The ramps are restored by
// the compositor when the adapter is closed.
func NewWayland(display string, logger *slog.Logger) (Adapter, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	conn, err := wayland.Connect(display)
	if err != nil {
		return nil, fmt.Errorf("wayland: connect: %w", err)
	}

	a := &wlAdapter{
		conn:   conn,
		logger: logger,
		gc:     wlGammaControlNew(conn, logger),
	}
	ctx, cancel := context.WithTimeout(context.Background(), wlInitTimeout)
	defer cancel()

	if err := a.gc.init(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("wayland: %w", err)
	}
	return a, nil
}

func (a *wlAdapter) Name() string {
	return "wayland"
}

func (a *wlAdapter) Apply(ctx context.Context, ramp *Ramp) error {
	return applyErr(a.Name(), applyCtx(ctx, func() error {
		return a.conn.Enqueue(ctx, func() error {
			return a.gc.SetRampLocked(ramp)
		})
	}))
}

func (a *wlAdapter) Close() error {
	a.conn.Close()
	return nil
}

type wlGammaControl struct {
	conn    *wayland.Connection
	logger  *slog.Logger
	manager *zwlr.GammaControlManagerV1
	outputs map[uint32]*wlGammaControlOutput

	ramp *Ramp
}

func wlGammaControlNew(conn *wayland.Connection, logger *slog.Logger) *wlGammaControl {
	return &wlGammaControl{
		conn:    conn,
		logger:  logger,
		manager: new(zwlr.GammaControlManagerV1),
		outputs: make(map[uint32]*wlGammaControlOutput),
	}
}

// init binds the registry and waits for the initial globals, failing if the
// compositor doesn't support gamma control.
func (ctx *wlGammaControl) init(c context.Context) error {
	if _, err := ctx.conn.Registry(gowl.ChainHandler(
		gowl.Registrar(ctx.manager),
		gowl.EventHandlerFunc[*wl.RegistryGlobalEvent](ctx.registryGlobal),
		gowl.EventHandlerFunc[*wl.RegistryGlobalRemoveEvent](ctx.registryGlobalRemove),
	)); err != nil {
		return err
	}
	return ctx.conn.Enqueue(c, func() error {
		if !ctx.manager.Valid() {
			return fmt.Errorf("compositor does not support %s: %w", ctx.manager.Name(), errors.ErrUnsupported)
		}
		// outputs announced before the manager
		for _, octx := range ctx.outputs {
			if octx.control == nil {
				if err := octx.attachLocked(ctx.manager); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// SetRampLocked must be called within [wayland.Connection.Do] or
// [wayland.Connection.Enqueue].
func (ctx *wlGammaControl) SetRampLocked(ramp *Ramp) error {
	ctx.ramp = ramp
	return ctx.applyLocked()
}

func (ctx *wlGammaControl) registryGlobal(ev *wl.RegistryGlobalEvent) bool {
	if ev.Interface() != "wl_output" {
		return false
	}
	reg := ev.Proxy().(*wl.Registry)
	ctx.conn.Do(func() error {
		ctx.logger.Debug("wayland: new output", "name", ev.Name())
		output := new(wl.Output)
		reg.Conn().Register(output)
		reg.Bind(ev.Name(), output.Name(), 1, output)

		octx := wlGammaControlOutputNew(ctx.conn, ctx.logger, output)
		ctx.outputs[ev.Name()] = octx
		if !ctx.manager.Valid() {
			return nil // attached by init
		}
		if err := octx.attachLocked(ctx.manager); err != nil {
			return err
		}
		if ctx.ramp != nil {
			return octx.SetRampLocked(ctx.ramp)
		}
		return nil
	})
	return true
}

func (ctx *wlGammaControl) registryGlobalRemove(ev *wl.RegistryGlobalRemoveEvent) bool {
	var ok bool
	ctx.conn.Do(func() error {
		var octx *wlGammaControlOutput
		if octx, ok = ctx.outputs[ev.Name()]; ok {
			ctx.logger.Debug("wayland: output removed", "name", ev.Name())
			octx.DestroyLocked()
			delete(ctx.outputs, ev.Name())
		}
		return nil
	})
	return ok
}

func (ctx *wlGammaControl) applyLocked() error {
	if ctx.ramp == nil {
		return nil
	}
	for _, octx := range ctx.outputs {
		if err := octx.SetRampLocked(ctx.ramp); err != nil {
			return err
		}
	}
	return nil
}

type wlGammaControlOutput struct {
	conn    *wayland.Connection
	logger  *slog.Logger
	output  *wl.Output
	control *zwlr.GammaControlV1

	buf  *wlGammaControlRamp
	ramp *Ramp
}

func wlGammaControlOutputNew(conn *wayland.Connection, logger *slog.Logger, output *wl.Output) *wlGammaControlOutput {
	return &wlGammaControlOutput{
		conn:   conn,
		logger: logger,
		output: output,
	}
}

func (octx *wlGammaControlOutput) attachLocked(manager *zwlr.GammaControlManagerV1) (err error) {
	octx.control, err = manager.GetGammaControl(octx.output, gowl.ChainHandler(
		gowl.EventHandlerFunc[*zwlr.GammaControlV1GammaSizeEvent](octx.gammaControlGammaSize),
		gowl.EventHandlerFunc[*zwlr.GammaControlV1FailedEvent](octx.gammaControlFailed),
	))
	if err != nil {
		return fmt.Errorf("get gamma control: %w", err)
	}
	return nil
}

func (octx *wlGammaControlOutput) SetRampLocked(ramp *Ramp) error {
	octx.ramp = ramp
	return octx.applyLocked()
}

func (octx *wlGammaControlOutput) DestroyLocked() {
	if octx.control != nil {
		octx.control.Destroy()
	}
	octx.output, octx.control, octx.buf, octx.ramp = nil, nil, nil, nil
}

func (octx *wlGammaControlOutput) gammaControlGammaSize(ev *zwlr.GammaControlV1GammaSizeEvent) bool {
	octx.conn.Do(func() (err error) {
		if ev.Proxy() != octx.control {
			return nil // destroyed
		}
		octx.buf = nil
		if ev.Size() == 0 {
			return nil
		}
		octx.buf, err = wlGammaControlRampNew(int(ev.Size()))
		if err != nil {
			return fmt.Errorf("create gamma ramp: %w", err)
		}
		return octx.applyLocked()
	})
	return true
}

func (octx *wlGammaControlOutput) gammaControlFailed(ev *zwlr.GammaControlV1FailedEvent) bool {
	octx.conn.Do(func() error {
		if ev.Proxy() != octx.control {
			return nil
		}
		octx.logger.Warn("wayland: gamma control failed (is something else already controlling this output?)")
		octx.control.Destroy()
		octx.control = nil
		return nil
	})
	return true
}

func (octx *wlGammaControlOutput) applyLocked() error {
	if octx.ramp == nil || octx.buf == nil || octx.control == nil {
		return nil
	}
	if err := octx.buf.Set(octx.ramp); err != nil {
		return fmt.Errorf("set gamma ramp: %w", err)
	}
	return octx.buf.Apply(octx.control)
}

// wlGammaControlRamp is a shared memory buffer holding [3*size]uint16.
type wlGammaControlRamp struct {
	_    noCopy
	fd   int
	size int
}

func wlGammaControlRampNew(size int) (*wlGammaControlRamp, error) {
	if size < 1 {
		return nil, fmt.Errorf("invalid size")
	}
	fd, err := unix.MemfdCreate("bluelight-gamma", unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("allocate shared memory: %w", err)
	}
	if err := unix.Ftruncate(fd, int64(size)*3*2); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("allocate shared memory: %w", err)
	}
	r := &wlGammaControlRamp{
		fd:   fd,
		size: size,
	}
	runtime.SetFinalizer(r, func(r *wlGammaControlRamp) {
		unix.Close(r.fd)
	})
	return r, nil
}

func (r *wlGammaControlRamp) Apply(control *zwlr.GammaControlV1) error {
	if _, err := unix.Seek(r.fd, 0, unix.SEEK_SET); err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	// if the ramp is rejected, the failed event is sent asynchronously
	if err := control.SetGamma(r.fd); err != nil {
		return fmt.Errorf("set gamma: %w", err)
	}
	return nil
}

func (r *wlGammaControlRamp) Set(ramp *Ramp) error {
	rr, rg, rb := ramp.Resize(r.size)
	_, err := unix.Pwritev(r.fd, [][]byte{
		unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(rr))), r.size*2),
		unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(rg))), r.size*2),
		unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(rb))), r.size*2),
	}, 0)
	return err
}

type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
