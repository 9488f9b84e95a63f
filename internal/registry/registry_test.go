package registry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/danmuck/simbridge/internal/testutil/testlog"
)

func TestUnixRegisterAndDeregister(t *testing.T) {
	testlog.Start(t)

	reg := UnixRegistry{Dir: t.TempDir()}
	h, err := reg.Register("simbridge0")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	path := filepath.Join(reg.Dir, "simbridge0.sock")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("socket not created: %v", err)
	}
	if h.Name() != "simbridge0" {
		t.Fatalf("unexpected handle name: %q", h.Name())
	}

	if err := reg.Deregister(h); err != nil {
		t.Fatalf("deregister: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("socket not removed after deregister: %v", err)
	}
}

func TestUnixRegisterCollisionWithLiveEndpoint(t *testing.T) {
	testlog.Start(t)

	reg := UnixRegistry{Dir: t.TempDir()}
	h, err := reg.Register("simbridge0")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	defer func() { _ = reg.Deregister(h) }()

	// Accept dials so the collision probe sees a live endpoint.
	go func() {
		for {
			conn, err := h.Listener().Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	if _, err := reg.Register("simbridge0"); !errors.Is(err, ErrNameTaken) {
		t.Fatalf("expected ErrNameTaken, got %v", err)
	}
}

func TestUnixRegisterReclaimsStaleSocket(t *testing.T) {
	testlog.Start(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "simbridge0.sock")

	// Stand-in for the leftover of an unclean shutdown: a path that
	// exists but answers no dial.
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatalf("seed stale socket: %v", err)
	}

	reg := UnixRegistry{Dir: dir}
	h, err := reg.Register("simbridge0")
	if err != nil {
		t.Fatalf("expected stale socket reclaim, got %v", err)
	}
	_ = reg.Deregister(h)
}

func TestUnixDeregisterAfterListenerClosed(t *testing.T) {
	testlog.Start(t)

	reg := UnixRegistry{Dir: t.TempDir()}
	h, err := reg.Register("simbridge0")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	// Graceful server shutdown closes the listener before deregistration.
	if err := h.Listener().Close(); err != nil {
		t.Fatalf("close listener: %v", err)
	}
	if err := reg.Deregister(h); err != nil {
		t.Fatalf("deregister after closed listener: %v", err)
	}

	path := filepath.Join(reg.Dir, "simbridge0.sock")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("socket not removed after deregister: %v", err)
	}
}

func TestUnixDeregisterTwiceFails(t *testing.T) {
	testlog.Start(t)

	reg := UnixRegistry{Dir: t.TempDir()}
	h, err := reg.Register("simbridge0")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Deregister(h); err != nil {
		t.Fatalf("first deregister: %v", err)
	}
	if err := reg.Deregister(h); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestTCPRegisterCollision(t *testing.T) {
	testlog.Start(t)

	first := TCPRegistry{Addr: "127.0.0.1:0"}
	h, err := first.Register("simbridge0")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	defer func() { _ = first.Deregister(h) }()

	second := TCPRegistry{Addr: h.Addr().String()}
	if _, err := second.Register("simbridge0"); !errors.Is(err, ErrNameTaken) {
		t.Fatalf("expected ErrNameTaken, got %v", err)
	}
}
