// Package registry binds the channel endpoint to a discoverable name
// in the host environment.
//
// Registration happens exactly once at daemon startup and is fatal on
// failure; deregistration happens once at shutdown. The Registry
// interface exists so the service lifecycle can be tested against a
// fake without touching the filesystem or the network.
package registry

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"
)

var (
	// ErrNameTaken reports a registration collision: another live
	// endpoint already answers under the requested name.
	ErrNameTaken = errors.New("registry: name taken")

	// ErrClosed reports deregistration of an already-released handle.
	ErrClosed = errors.New("registry: handle closed")
)

// Handle is the opaque binding created by Register. It owns the bound
// listener until Deregister releases it.
type Handle interface {
	Name() string
	Addr() net.Addr
	Listener() net.Listener
	Close() error
}

// Registry makes a channel endpoint reachable by name.
type Registry interface {
	Register(name string) (Handle, error)
	Deregister(h Handle) error
}

// handle is the shared Handle implementation for both registries.
type handle struct {
	name    string
	ln      net.Listener
	cleanup func()
	closed  bool
}

func (h *handle) Name() string           { return h.name }
func (h *handle) Addr() net.Addr         { return h.ln.Addr() }
func (h *handle) Listener() net.Listener { return h.ln }

func (h *handle) Close() error {
	if h.closed {
		return ErrClosed
	}
	h.closed = true
	err := h.ln.Close()
	if h.cleanup != nil {
		h.cleanup()
	}
	// A graceful server shutdown closes the listener before the name
	// binding is released; that is a clean deregistration, not a fault.
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// UnixRegistry binds endpoints as unix sockets under Dir, one socket
// per name. This is the default host-environment binding: the socket
// path is the discoverable device node.
type UnixRegistry struct {
	Dir string
}

// Register binds <dir>/<name>.sock. A socket that still answers a
// dial is a live collision; a socket nothing accepts on is a stale
// leftover from an unclean shutdown and is reclaimed.
func (r UnixRegistry) Register(name string) (Handle, error) {
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("registry: create socket dir: %w", err)
	}
	path := filepath.Join(r.Dir, name+".sock")

	if _, err := os.Stat(path); err == nil {
		if socketAlive(path) {
			return nil, fmt.Errorf("%w: %s", ErrNameTaken, path)
		}
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("registry: reclaim stale socket %s: %w", path, err)
		}
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("registry: bind %s: %w", path, err)
	}
	return &handle{
		name:    name,
		ln:      ln,
		cleanup: func() { _ = os.Remove(path) },
	}, nil
}

// Deregister releases the name binding and removes the socket file.
func (r UnixRegistry) Deregister(h Handle) error {
	return h.Close()
}

// socketAlive dials the socket to distinguish a live endpoint from a
// stale file.
func socketAlive(path string) bool {
	conn, err := net.DialTimeout("unix", path, 250*time.Millisecond)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// TCPRegistry binds endpoints on a fixed TCP address. The name only
// labels the binding; collision detection is the bind itself failing
// with address-in-use.
type TCPRegistry struct {
	Addr string
}

func (r TCPRegistry) Register(name string) (Handle, error) {
	ln, err := net.Listen("tcp", r.Addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s (%v)", ErrNameTaken, r.Addr, err)
	}
	return &handle{name: name, ln: ln}, nil
}

func (r TCPRegistry) Deregister(h Handle) error {
	return h.Close()
}
