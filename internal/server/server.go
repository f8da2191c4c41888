package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bluekiller/homemate-bridge/internal/config"
	"github.com/bluekiller/homemate-bridge/internal/logging"
	"github.com/bluekiller/homemate-bridge/internal/notify"
	"github.com/bluekiller/homemate-bridge/internal/session"
)

// shutdownGrace bounds how long Shutdown waits for session goroutines
// after their sockets have been closed.
const shutdownGrace = 10 * time.Second

// Server accepts device connections and turns each one into a session.
type Server struct {
	cfg      *config.Config
	hub      *notify.Hub
	registry *Registry
	settings session.SettingsLookup

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

// New creates a server. The hub receives session pushes on first
// heartbeat; the display-name override table comes from cfg.Devices.
func New(cfg *config.Config, hub *notify.Hub) *Server {
	devices := cfg.Devices
	settings := func(localIP string) (string, bool) {
		d, ok := devices[localIP]
		if !ok {
			return "", false
		}
		return d.Name, true
	}

	return &Server{
		cfg:      cfg,
		hub:      hub,
		registry: NewRegistry(),
		settings: settings,
	}
}

// Registry exposes the live session set for diagnostics.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Start binds the listener and blocks in the accept loop until Shutdown
// closes it.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.BindPort)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	logging.Info("HomeMate bridge listening for devices", zap.String("addr", addr))

	return s.acceptConnections(listener)
}

func (s *Server) acceptConnections(listener net.Listener) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			logging.Error("Failed to accept connection", zap.Error(err))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

// handleConnection owns one accepted socket for its whole life: create the
// session, register it, run the read loop, deregister and close.
func (s *Server) handleConnection(conn net.Conn) {
	remoteAddr := conn.RemoteAddr().String()
	logging.LogConnection(remoteAddr, "connection_accepted")

	sess := session.New(conn, s.hub, s.settings)
	s.registry.Add(sess)

	defer func() {
		s.registry.Remove(sess)
		_ = conn.Close()
		logging.LogConnection(remoteAddr, "connection_closed")
	}()

	if err := sess.Serve(); err != nil {
		logging.Error("Session terminated",
			zap.String("remote_addr", remoteAddr),
			zap.Error(err),
		)
	}
}

// Shutdown stops accepting, force-closes every live session socket and
// waits for the session goroutines with a bounded grace period.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down bridge server")

	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()

	if listener != nil {
		if err := listener.Close(); err != nil {
			logging.Error("Error closing listener", zap.Error(err))
		}
	}

	s.registry.CloseAll()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("All sessions closed")
	case <-ctx.Done():
		logging.Warn("Shutdown cancelled, abandoning session goroutines")
	case <-time.After(shutdownGrace):
		logging.Warn("Shutdown grace period expired, abandoning session goroutines")
	}

	return nil
}
