package server

import (
	"sync"

	"github.com/bluekiller/homemate-bridge/internal/session"
)

// Registry is the lock-guarded set of live sessions. The listener owns
// membership: sessions are added on accept and removed when their read
// loop exits. Each session owns its own socket.
type Registry struct {
	mu       sync.Mutex
	sessions map[*session.Session]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[*session.Session]struct{})}
}

// Add registers a live session.
func (r *Registry) Add(s *session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s] = struct{}{}
}

// Remove deregisters a session. Removing an unknown session is a no-op.
func (r *Registry) Remove(s *session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, s)
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Snapshot returns the current sessions for diagnostic iteration. The
// slice is a copy; sessions may die while it is being used.
func (r *Registry) Snapshot() []*session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*session.Session, 0, len(r.sessions))
	for s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// CloseAll force-closes every registered socket. Each pending read fails
// with a connection-closed error, ending its session loop promptly.
func (r *Registry) CloseAll() {
	for _, s := range r.Snapshot() {
		_ = s.Close()
	}
}
