package server

import (
	"net"
	"testing"
	"time"

	"github.com/bluekiller/homemate-bridge/internal/session"
)

func newPipeSession(t *testing.T) (*session.Session, net.Conn) {
	t.Helper()

	serverConn, deviceConn := net.Pipe()
	t.Cleanup(func() {
		_ = serverConn.Close()
		_ = deviceConn.Close()
	})
	return session.New(serverConn, nil, nil), serverConn
}

func TestRegistryMembership(t *testing.T) {
	r := NewRegistry()

	s1, _ := newPipeSession(t)
	s2, _ := newPipeSession(t)

	r.Add(s1)
	r.Add(s2)
	if got := r.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}

	snapshot := r.Snapshot()
	if len(snapshot) != 2 {
		t.Errorf("Snapshot() has %d sessions, want 2", len(snapshot))
	}

	r.Remove(s1)
	if got := r.Len(); got != 1 {
		t.Errorf("Len() after remove = %d, want 1", got)
	}

	// Removing twice is a no-op.
	r.Remove(s1)
	if got := r.Len(); got != 1 {
		t.Errorf("Len() after double remove = %d, want 1", got)
	}
}

func TestRegistryCloseAll(t *testing.T) {
	r := NewRegistry()

	s, conn := newPipeSession(t)
	r.Add(s)

	r.CloseAll()

	// The socket is closed: a read fails immediately instead of blocking.
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err == nil {
		t.Error("read on closed session socket succeeded")
	}
}

func TestSessionInfoUnknownPower(t *testing.T) {
	s, _ := newPipeSession(t)

	info := sessionInfo(s)
	if info.Power != "unknown" {
		t.Errorf("power = %q, want unknown before any state update", info.Power)
	}
	if info.Serial != 0 {
		t.Errorf("serial = %d, want 0", info.Serial)
	}
}
