//go:build linux

// Package zwlr contains bindings for wlr-gamma-control-unstable-v1.
package zwlr

import (
	"log"

	"github.com/friedelschoen/wayland"
	"github.com/pgaskin/bluelight/wayland/wl"
)

// GammaControlManagerV1 is a zwlr_gamma_control_manager_v1, which creates
// per-output gamma controls. It is a global, so it can be bound with
// [wayland.Registrar].
type GammaControlManagerV1 struct {
	wayland.BaseProxy
}

func (p *GammaControlManagerV1) Name() string {
	return "zwlr_gamma_control_manager_v1"
}

// GetGammaControl creates a gamma control for output. The compositor responds
// with either a gamma_size or a failed event.
func (p *GammaControlManagerV1) GetGammaControl(output *wl.Output, handler wayland.EventHandler) (*GammaControlV1, error) {
	gc := &GammaControlV1{Handler: handler}
	p.Conn().Register(gc)
	w := wayland.NewMessageWriter(p, 0)
	w.WriteUint(gc.ID())
	w.WriteObject(output)
	return gc, w.Finish()
}

// Destroy destroys the manager. Existing gamma controls are not affected.
func (p *GammaControlManagerV1) Destroy() {
	if !p.Valid() {
		return
	}
	w := wayland.NewMessageWriter(p, 1)
	if err := w.Finish(); err != nil {
		log.Printf("zwlr_gamma_control_manager_v1.destroy: %v", err)
	}
}

// GammaControlV1 is a zwlr_gamma_control_v1, which sets the gamma tables of
// an output. Only one client may control the gamma of an output at a time,
// and the compositor restores the original tables once it is destroyed.
type GammaControlV1 struct {
	wayland.BaseProxy
	Handler wayland.EventHandler
}

func (p *GammaControlV1) Name() string {
	return "zwlr_gamma_control_v1"
}

// SetGamma sets the gamma tables from fd, which must contain the red, green
// and blue ramps as gamma_size native-endian uint16 values each, starting at
// the current offset. If the tables are invalid, the compositor sends a
// failed event.
func (p *GammaControlV1) SetGamma(fd int) error {
	w := wayland.NewMessageWriter(p, 0)
	w.WriteFd(fd)
	return w.Finish()
}

// Destroy destroys the gamma control, restoring the original gamma tables.
func (p *GammaControlV1) Destroy() {
	if !p.Valid() {
		return
	}
	w := wayland.NewMessageWriter(p, 1)
	if err := w.Finish(); err != nil {
		log.Printf("zwlr_gamma_control_v1.destroy: %v", err)
	}
}

func (p *GammaControlV1) Dispatch(msg *wayland.Message) {
	r := wayland.NewMessageReader(p.Conn(), msg)
	switch msg.Opcode {
	case 0:
		ev := &GammaControlV1GammaSizeEvent{proxy: p}
		ev.size = r.ReadUint()
		if r.HadOverflow() {
			log.Printf("zwlr_gamma_control_v1.gamma_size: message too short")
			return
		}
		if p.Handler != nil {
			p.Handler.Handle(ev)
		}
	case 1:
		if p.Handler != nil {
			p.Handler.Handle(&GammaControlV1FailedEvent{proxy: p})
		}
	}
}

// GammaControlV1GammaSizeEvent advertises the number of entries per channel
// in the gamma tables.
type GammaControlV1GammaSizeEvent struct {
	proxy *GammaControlV1
	size  uint32
}

func (e *GammaControlV1GammaSizeEvent) Proxy() wayland.Proxy { return e.proxy }
func (e *GammaControlV1GammaSizeEvent) Size() uint32         { return e.size }

// GammaControlV1FailedEvent is sent when the gamma control is no longer
// valid, either because another client already controls the output or
// because the tables were invalid. The control should be destroyed.
type GammaControlV1FailedEvent struct {
	proxy *GammaControlV1
}

func (e *GammaControlV1FailedEvent) Proxy() wayland.Proxy { return e.proxy }
