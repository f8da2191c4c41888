package session

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bluekiller/homemate-bridge/internal/logging"
	"github.com/bluekiller/homemate-bridge/internal/notify"
	"github.com/bluekiller/homemate-bridge/internal/protocol"
)

const (
	// idleTimeout closes the connection if the device sends nothing for
	// this long. Healthy devices heartbeat every few minutes.
	idleTimeout = 30 * time.Minute

	// readBufferSize is sized to MaxFrameSize; devices send one complete
	// frame per read.
	readBufferSize = protocol.MaxFrameSize

	deviceIDLength   = 32
	sessionKeyLength = 16

	deviceIDAlphabet   = "abcdefghijklmnopqrstuvwxyz0123456789"
	sessionKeyAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// SettingsLookup resolves a device's self-reported local IP to an optional
// display-name override. It is read-only state owned by configuration, not
// by the core; ok reports whether the address has an entry at all.
type SettingsLookup func(localIP string) (name string, ok bool)

type callback struct {
	handle notify.CallbackHandle
	fn     func()
}

// Session is the live state of one device connection. It implements
// notify.Device.
type Session struct {
	conn     net.Conn
	remoteIP string
	hub      *notify.Hub
	settings SettingsLookup

	mu         sync.Mutex
	assigned   bool
	deviceID   [protocol.DeviceIDSize]byte
	keys       map[byte][]byte
	serial     int64
	uid        string
	deviceName string

	softwareVersion string
	hardwareVersion string
	modelID         string
	language        string

	switchOn *bool
	moving   int
	position int

	callbacks  []callback
	nextHandle notify.CallbackHandle

	pushedLight bool
	pushedCover bool
}

// New creates a session for an accepted connection. settings may be nil
// when no display-name overrides are configured.
func New(conn net.Conn, hub *notify.Hub, settings SettingsLookup) *Session {
	if settings == nil {
		settings = func(string) (string, bool) { return "", false }
	}

	remoteIP := conn.RemoteAddr().String()
	if host, _, err := net.SplitHostPort(remoteIP); err == nil {
		remoteIP = host
	}

	return &Session{
		conn:     conn,
		remoteIP: remoteIP,
		hub:      hub,
		settings: settings,
		keys:     protocol.DefaultKeys(),
	}
}

// Serve runs the read loop until the peer disconnects, the idle timeout
// fires, or a fatal protocol error occurs. An orderly close returns nil.
func (s *Session) Serve() error {
	buf := make([]byte, readBufferSize)

	for {
		if err := s.conn.SetReadDeadline(time.Now().Add(idleTimeout)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}

		n, err := s.conn.Read(buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, os.ErrDeadlineExceeded) {
				logging.Info("Closing idle connection", zap.String("remote_addr", s.remoteIP))
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		if n == 0 {
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		if err := s.handleFrame(data); err != nil {
			logging.LogRawBytes("Frame that killed the connection", data)
			return err
		}
	}
}

// handleFrame processes one complete inbound frame: decode, identity,
// decrypt, dispatch, optional reply, boundary push.
func (s *Session) handleFrame(data []byte) error {
	frame, err := protocol.Decode(data)
	if err != nil {
		return err
	}

	logging.LogFrame(s.remoteIP, "received", frame.Type.String(), data)

	s.assignIdentity(frame.DeviceID)

	s.mu.Lock()
	key, ok := s.keys[frame.Type.KeyByte()]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: type byte 0x%02x", protocol.ErrMissingKey, frame.Type.KeyByte())
	}

	plaintext, err := protocol.Decrypt(key, frame.Ciphertext)
	if err != nil {
		return err
	}

	msg, err := protocol.DecodeMessage(plaintext)
	if err != nil {
		return err
	}

	cmd, ok := msg.Cmd()
	if !ok {
		return fmt.Errorf("%w: missing cmd field", protocol.ErrMalformedPayload)
	}
	if _, ok := msg.Serial(); !ok {
		return fmt.Errorf("%w: missing serial field", protocol.ErrMalformedPayload)
	}

	logging.Debug("Dispatching command",
		zap.String("remote_addr", s.remoteIP),
		zap.Int64("cmd", cmd),
	)

	reply := s.dispatch(cmd, msg)

	if reply != nil {
		formatReply(msg, reply)
		if err := s.send(frame.Type, reply); err != nil {
			return err
		}
	}

	if cmd == cmdHeartbeat {
		s.pushOnce()
	}

	return nil
}

// formatReply stamps the reply envelope: same cmd and serial as the
// request, zero status, and the inbound uid when present.
func formatReply(request, reply protocol.Message) {
	reply["cmd"] = request["cmd"]
	reply["serial"] = request["serial"]
	reply["status"] = 0

	if uid, ok := request["uid"]; ok {
		reply["uid"] = uid
	}
}

// assignIdentity fixes the session's device id on the first frame. The
// all-zero sentinel means the device wants a fresh id; anything else is
// adopted verbatim. This transition happens at most once per session.
func (s *Session) assignIdentity(id [protocol.DeviceIDSize]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.assigned {
		return
	}

	if protocol.IsUnsetDeviceID(id) {
		generated := randomString(deviceIDAlphabet, deviceIDLength)
		copy(s.deviceID[:], generated)
		logging.Debug("Generated new device id",
			zap.String("remote_addr", s.remoteIP),
			zap.String("device_id", generated),
		)
	} else {
		s.deviceID = id
		logging.Debug("Adopted device-declared id",
			zap.String("remote_addr", s.remoteIP),
			zap.String("device_id", string(id[:])),
		)
	}
	s.assigned = true
}

// send encrypts and writes one frame to the device under the session lock,
// so read-loop replies and externally triggered control frames never
// interleave on the socket.
func (s *Session) send(frameType protocol.FrameType, msg protocol.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendLocked(frameType, msg)
}

func (s *Session) sendLocked(frameType protocol.FrameType, msg protocol.Message) error {
	key, ok := s.keys[frameType.KeyByte()]
	if !ok {
		return fmt.Errorf("%w: type byte 0x%02x", protocol.ErrMissingKey, frameType.KeyByte())
	}

	data, err := protocol.Encode(frameType, key, s.deviceID, msg)
	if err != nil {
		return err
	}

	if _, err := s.conn.Write(data); err != nil {
		return fmt.Errorf("write: %w", err)
	}

	logging.LogFrame(s.remoteIP, "sent", frameType.String(), data)
	return nil
}

// pushOnce registers the session at the notification boundary, exactly once
// per entity kind. HomeMate hardware exposes both a relay and a motor, so
// both kinds are offered.
func (s *Session) pushOnce() {
	if s.hub == nil {
		return
	}

	s.mu.Lock()
	pushLight := !s.pushedLight
	pushCover := !s.pushedCover
	s.pushedLight = true
	s.pushedCover = true
	s.mu.Unlock()

	if pushLight {
		s.hub.Push(notify.KindLight, s)
	}
	if pushCover {
		s.hub.Push(notify.KindCover, s)
	}
}

// Close shuts the underlying socket, unblocking a pending read.
func (s *Session) Close() error {
	return s.conn.Close()
}

// RegisterCallback adds a state-change observer. Observers run
// synchronously on the read loop, in registration order.
func (s *Session) RegisterCallback(fn func()) notify.CallbackHandle {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextHandle++
	handle := s.nextHandle
	s.callbacks = append(s.callbacks, callback{handle: handle, fn: fn})
	return handle
}

// RemoveCallback removes a previously registered observer. Unknown handles
// are ignored.
func (s *Session) RemoveCallback(h notify.CallbackHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, cb := range s.callbacks {
		if cb.handle == h {
			s.callbacks = append(s.callbacks[:i], s.callbacks[i+1:]...)
			return
		}
	}
}

// notifyCallbacks invokes every observer, in order, outside the session
// lock so observers may call back into accessors.
func (s *Session) notifyCallbacks() {
	s.mu.Lock()
	snapshot := make([]callback, len(s.callbacks))
	copy(snapshot, s.callbacks)
	s.mu.Unlock()

	for _, cb := range snapshot {
		cb.fn()
	}
}

// UID returns the device-declared logical identifier.
func (s *Session) UID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uid
}

// DeviceID returns the 32-byte wire identifier as a string. Empty until
// the first frame has been seen.
func (s *Session) DeviceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.assigned {
		return ""
	}
	return string(s.deviceID[:])
}

// DeviceName returns the display name derived during the handshake.
func (s *Session) DeviceName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deviceName
}

// SoftwareVersion returns the firmware version reported in the hello.
func (s *Session) SoftwareVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.softwareVersion
}

// HardwareVersion returns the hardware revision reported in the hello.
func (s *Session) HardwareVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hardwareVersion
}

// ModelID returns the model identifier reported in the hello.
func (s *Session) ModelID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modelID
}

// Language returns the language code reported in the hello.
func (s *Session) Language() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.language
}

// SwitchOn reports the cached power state; known is false until the first
// state update arrives.
func (s *Session) SwitchOn() (on, known bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.switchOn == nil {
		return false, false
	}
	return *s.switchOn, true
}

// Moving reports motor direction: +1 opening, -1 closing, 0 idle.
func (s *Session) Moving() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moving
}

// Position reports the raw device position, 0..100.
func (s *Session) Position() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// Serial reports the current outbound serial counter.
func (s *Session) Serial() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serial
}

// RemoteIP returns the peer address the connection was accepted from.
func (s *Session) RemoteIP() string {
	return s.remoteIP
}

// randomString draws n characters from alphabet using crypto/rand.
func randomString(alphabet string, n int) string {
	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		// crypto/rand never fails on supported platforms
		panic(fmt.Sprintf("session: rand.Read: %v", err))
	}

	out := make([]byte, n)
	for i, b := range raw {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(out)
}
