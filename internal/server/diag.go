package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/bluekiller/homemate-bridge/internal/logging"
	"github.com/bluekiller/homemate-bridge/internal/session"
)

// snapshotInterval is how often the websocket stream pushes a fresh
// registry snapshot to each subscriber.
const snapshotInterval = time.Second

// SessionInfo is one session's state as exposed by the diagnostics
// endpoint. Power is "on", "off" or "unknown".
type SessionInfo struct {
	UID             string `json:"uid"`
	DeviceID        string `json:"device_id"`
	DeviceName      string `json:"device_name"`
	RemoteIP        string `json:"remote_ip"`
	SoftwareVersion string `json:"software_version"`
	ModelID         string `json:"model_id"`
	Power           string `json:"power"`
	Moving          int    `json:"moving"`
	Position        int    `json:"position"`
	Serial          int64  `json:"serial"`
}

func sessionInfo(s *session.Session) SessionInfo {
	power := "unknown"
	if on, known := s.SwitchOn(); known {
		if on {
			power = "on"
		} else {
			power = "off"
		}
	}

	return SessionInfo{
		UID:             s.UID(),
		DeviceID:        s.DeviceID(),
		DeviceName:      s.DeviceName(),
		RemoteIP:        s.RemoteIP(),
		SoftwareVersion: s.SoftwareVersion(),
		ModelID:         s.ModelID(),
		Power:           power,
		Moving:          s.Moving(),
		Position:        s.Position(),
		Serial:          s.Serial(),
	}
}

// Diag serves read-only diagnostics over HTTP: GET /sessions returns a
// JSON snapshot of the registry, GET /ws streams snapshots once a second
// over a websocket. It never mutates sessions.
type Diag struct {
	registry *Registry
	srv      *http.Server
	upgrader websocket.Upgrader
}

// NewDiag creates a diagnostics server bound to listenAddr.
func NewDiag(listenAddr string, registry *Registry) *Diag {
	d := &Diag{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /sessions", d.handleSessions)
	mux.HandleFunc("GET /ws", d.handleWS)

	d.srv = &http.Server{
		Addr:    listenAddr,
		Handler: mux,
	}

	return d
}

// Start serves until Shutdown. Run it on its own goroutine.
func (d *Diag) Start() error {
	logging.Info("Diagnostics endpoint listening", zap.String("addr", d.srv.Addr))

	if err := d.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server.
func (d *Diag) Shutdown(ctx context.Context) error {
	return d.srv.Shutdown(ctx)
}

func (d *Diag) snapshot() []SessionInfo {
	sessions := d.registry.Snapshot()
	infos := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, sessionInfo(s))
	}
	return infos
}

func (d *Diag) handleSessions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(d.snapshot()); err != nil {
		logging.Error("Failed to write sessions snapshot", zap.Error(err))
	}
}

// handleWS upgrades to a websocket and streams registry snapshots until
// the client goes away.
func (d *Diag) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("Websocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}
	defer func() { _ = conn.Close() }()

	logging.Debug("Diagnostics subscriber connected", zap.String("remote_addr", r.RemoteAddr))

	// Drain control frames so pings and close frames are processed.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()

	for range ticker.C {
		if err := conn.WriteJSON(d.snapshot()); err != nil {
			logging.Debug("Diagnostics subscriber disconnected",
				zap.String("remote_addr", r.RemoteAddr),
				zap.Error(err),
			)
			return
		}
	}
}
