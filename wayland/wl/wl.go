//go:build linux

// Package wl contains bindings for the parts of the core wayland protocol
// (wl_display, wl_registry, wl_callback and wl_output) used to manage gamma
// ramps. They follow the conventions of gowls output: one struct per
// interface embedding [wayland.BaseProxy], one event type per event with
// accessor methods named after the arguments, and events delivered to the
// proxy's Handler on the connection's dispatch goroutine.
package wl

import (
	"log"

	"github.com/friedelschoen/wayland"
)

// Display is the wl_display singleton. It must be the first object
// registered on a connection.
type Display struct {
	wayland.BaseProxy
	Handler wayland.EventHandler
}

func (p *Display) Name() string {
	return "wl_display"
}

// Sync requests a wl_callback which is done once the compositor has processed
// all requests sent before it.
func (p *Display) Sync(handler wayland.EventHandler) (*Callback, error) {
	cb := &Callback{Handler: handler}
	p.Conn().Register(cb)
	w := wayland.NewMessageWriter(p, 0)
	w.WriteUint(cb.ID())
	return cb, w.Finish()
}

// GetRegistry creates a wl_registry object which announces the globals.
func (p *Display) GetRegistry(handler wayland.EventHandler) (*Registry, error) {
	reg := &Registry{Handler: handler}
	p.Conn().Register(reg)
	w := wayland.NewMessageWriter(p, 1)
	w.WriteUint(reg.ID())
	return reg, w.Finish()
}

func (p *Display) Dispatch(msg *wayland.Message) {
	r := wayland.NewMessageReader(p.Conn(), msg)
	switch msg.Opcode {
	case 0:
		ev := &DisplayErrorEvent{proxy: p}
		ev.objectID = r.ReadObject()
		ev.code = r.ReadUint()
		ev.message = r.ReadString()
		dispatch(p.Handler, ev, r.HadOverflow())
	case 1:
		ev := &DisplayDeleteIDEvent{proxy: p}
		ev.id = r.ReadUint()
		dispatch(p.Handler, ev, r.HadOverflow())
	}
}

// DisplayErrorEvent is a fatal protocol error.
type DisplayErrorEvent struct {
	proxy    *Display
	objectID wayland.Proxy
	code     uint32
	message  string
}

func (e *DisplayErrorEvent) Proxy() wayland.Proxy    { return e.proxy }
func (e *DisplayErrorEvent) ObjectID() wayland.Proxy { return e.objectID }
func (e *DisplayErrorEvent) Code() uint32            { return e.code }
func (e *DisplayErrorEvent) Message() string         { return e.message }

// DisplayDeleteIDEvent acknowledges the deletion of an object id. It should
// be passed to [wayland.Conn.UnregisterEvent].
type DisplayDeleteIDEvent struct {
	proxy *Display
	id    uint32
}

func (e *DisplayDeleteIDEvent) Proxy() wayland.Proxy { return e.proxy }
func (e *DisplayDeleteIDEvent) ID() uint32           { return e.id }

// Registry is a wl_registry. Its global events satisfy the interfaces used by
// [wayland.Registrar].
type Registry struct {
	wayland.BaseProxy
	Handler wayland.EventHandler
}

func (p *Registry) Name() string {
	return "wl_registry"
}

// Bind binds the global name to p, which must already be registered on the
// connection. It has no error result so it can be used by
// [wayland.Registrar]; failures are logged.
func (p *Registry) Bind(name uint32, iface string, version uint32, id wayland.Proxy) {
	w := wayland.NewMessageWriter(p, 0)
	w.WriteUint(name)
	w.WriteString(iface)
	w.WriteUint(version)
	w.WriteUint(id.ID())
	if err := w.Finish(); err != nil {
		log.Printf("wl_registry.bind(%s): %v", iface, err)
	}
}

func (p *Registry) Dispatch(msg *wayland.Message) {
	r := wayland.NewMessageReader(p.Conn(), msg)
	switch msg.Opcode {
	case 0:
		ev := &RegistryGlobalEvent{proxy: p}
		ev.name = r.ReadUint()
		ev.iface = r.ReadString()
		ev.version = r.ReadUint()
		dispatch(p.Handler, ev, r.HadOverflow())
	case 1:
		ev := &RegistryGlobalRemoveEvent{proxy: p}
		ev.name = r.ReadUint()
		dispatch(p.Handler, ev, r.HadOverflow())
	}
}

// RegistryGlobalEvent announces a global object.
type RegistryGlobalEvent struct {
	proxy   *Registry
	name    uint32
	iface   string
	version uint32
}

func (e *RegistryGlobalEvent) Proxy() wayland.Proxy { return e.proxy }
func (e *RegistryGlobalEvent) Name() uint32         { return e.name }
func (e *RegistryGlobalEvent) Interface() string    { return e.iface }
func (e *RegistryGlobalEvent) Version() uint32      { return e.version }

// RegistryGlobalRemoveEvent announces the removal of a global object.
type RegistryGlobalRemoveEvent struct {
	proxy *Registry
	name  uint32
}

func (e *RegistryGlobalRemoveEvent) Proxy() wayland.Proxy { return e.proxy }
func (e *RegistryGlobalRemoveEvent) Name() uint32         { return e.name }

// Callback is a wl_callback.
type Callback struct {
	wayland.BaseProxy
	Handler wayland.EventHandler
}

func (p *Callback) Name() string {
	return "wl_callback"
}

func (p *Callback) Dispatch(msg *wayland.Message) {
	r := wayland.NewMessageReader(p.Conn(), msg)
	switch msg.Opcode {
	case 0:
		ev := &CallbackDoneEvent{proxy: p}
		ev.callbackData = r.ReadUint()
		dispatch(p.Handler, ev, r.HadOverflow())
	}
}

// CallbackDoneEvent is sent when the callback is done. The compositor deletes
// the callback afterwards.
type CallbackDoneEvent struct {
	proxy        *Callback
	callbackData uint32
}

func (e *CallbackDoneEvent) Proxy() wayland.Proxy { return e.proxy }
func (e *CallbackDoneEvent) CallbackData() uint32 { return e.callbackData }

// Output is a wl_output. Only version 1 is supported, and none of its events
// are decoded.
type Output struct {
	wayland.BaseProxy
}

func (p *Output) Name() string {
	return "wl_output"
}

func dispatch(h wayland.EventHandler, ev wayland.Event, overflow bool) {
	if overflow {
		log.Printf("%T: message too short", ev)
		return
	}
	if h != nil {
		h.Handle(ev)
	}
}
