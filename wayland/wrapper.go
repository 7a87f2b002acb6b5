//go:build linux

// Package wayland wraps a connection to a wayland compositor so protocol
// objects and the state built from their events can be shared between the
// dispatch goroutine and callers.
package wayland

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	gowl "github.com/friedelschoen/wayland"
	"github.com/pgaskin/bluelight/wayland/wl"
)

// Notes on the wayland runtime:
//
// Events are read and dispatched on a goroutine started by [gowl.Connect], so
// handlers must never wait for other events (a roundtrip from within a
// handler deadlocks). Requests are serialized by the runtime, so they can be
// sent from any goroutine, but the state handlers build up is not, which is
// what [Connection.Do] is for.

// Connection is a connection to a compositor. All state touched by event
// handlers must only be accessed within [Connection.Do], or
// [Connection.Enqueue], which runs after all events sent before it have been
// dispatched. Any error returned from either is fatal and closes the
// connection, as does a protocol error from the compositor.
type Connection struct {
	conn      *gowl.Conn
	display   *wl.Display
	mu        chan struct{} // chan instead of a mutex so we can also wait on closed
	closeOnce sync.Once
	closed    chan struct{}
	closedErr error
}

// ProtocolError is a fatal error sent by the compositor.
type ProtocolError struct {
	Object string
	Code   uint32
	Msg    string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("wayland: protocol error %d on %s: %s", e.Code, e.Object, e.Msg)
}

// Connect connects to the named display, or the default one if empty.
// Relative names are resolved against XDG_RUNTIME_DIR.
func Connect(name string) (*Connection, error) {
	conn, err := gowl.Connect(resolveDisplay(name, os.Getenv("XDG_RUNTIME_DIR")))
	if err != nil {
		return nil, err
	}
	c := &Connection{
		conn:   conn,
		mu:     make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
	c.display = &wl.Display{
		Handler: gowl.ChainHandler(
			gowl.EventHandlerFunc[*wl.DisplayDeleteIDEvent](func(ev *wl.DisplayDeleteIDEvent) bool {
				return conn.UnregisterEvent(ev)
			}),
			gowl.EventHandlerFunc[*wl.DisplayErrorEvent](c.displayError),
		),
	}
	conn.Register(c.display)
	c.mu <- struct{}{}
	return c, nil
}

func resolveDisplay(name, runtimeDir string) string {
	if name == "" || filepath.IsAbs(name) || runtimeDir == "" {
		return name
	}
	return filepath.Join(runtimeDir, name)
}

func (c *Connection) displayError(ev *wl.DisplayErrorEvent) bool {
	obj := "unknown object"
	if p := ev.ObjectID(); p != nil {
		obj = fmt.Sprintf("%s@%d", p.Name(), p.ID())
	}
	c.closeWithError(&ProtocolError{
		Object: obj,
		Code:   ev.Code(),
		Msg:    ev.Message(),
	})
	return true
}

// Registry creates a registry which sends global events to h. The globals are
// only guaranteed to have been announced after a [Connection.Enqueue].
func (c *Connection) Registry(h gowl.EventHandler) (*wl.Registry, error) {
	var reg *wl.Registry
	err := c.Do(func() (err error) {
		reg, err = c.display.GetRegistry(h)
		return err
	})
	return reg, err
}

// Do runs fn while blocking any other calls to [Connection.Do] (including the
// ones made by event handlers). It is not re-entrant.
func (c *Connection) Do(fn func() error) error {
	select {
	case <-c.closed:
		return c.err()
	case <-c.mu: // lock
	}
	defer func() {
		c.mu <- struct{}{} // unlock
	}()
	select {
	case <-c.closed:
		return c.err()
	default:
	}
	if fn == nil {
		return nil
	}
	if err := fn(); err != nil {
		c.closeWithError(err)
		return err
	}
	return nil
}

// Enqueue waits for the compositor to process all requests and for all events
// sent before that to be dispatched, then runs fn within [Connection.Do]. It
// returns early if ctx is done or the connection is closed in the meantime.
// It must not be called from an event handler.
func (c *Connection) Enqueue(ctx context.Context, fn func() error) error {
	done := make(chan struct{})
	if err := c.Do(func() error {
		_, err := c.display.Sync(gowl.EventHandlerFunc[*wl.CallbackDoneEvent](func(*wl.CallbackDoneEvent) bool {
			close(done)
			return true
		}))
		return err
	}); err != nil {
		return err
	}
	select {
	case <-done:
		return c.Do(fn)
	case <-c.closed:
		return c.err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the connection if it is not already closed.
func (c *Connection) Close() {
	c.closeWithError(nil)
}

// Closed waits for the connection to be closed. If it was not closed by
// [Connection.Close], the fatal error is returned.
func (c *Connection) Closed() error {
	<-c.closed
	return c.closedErr
}

func (c *Connection) err() error {
	if c.closedErr != nil {
		return c.closedErr
	}
	return os.ErrClosed
}

func (c *Connection) closeWithError(err error) {
	c.closeOnce.Do(func() {
		c.closedErr = err
		if cerr := c.conn.Close(); cerr != nil && err == nil && !errors.Is(cerr, os.ErrClosed) {
			c.closedErr = cerr
		}
		close(c.closed)
	})
}
