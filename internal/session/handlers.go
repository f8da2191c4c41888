package session

import (
	"time"

	"go.uber.org/zap"

	"github.com/bluekiller/homemate-bridge/internal/logging"
	"github.com/bluekiller/homemate-bridge/internal/protocol"
)

// Command codes carried in the decrypted payload.
const (
	cmdHello       = 0  // key exchange, replies with the session key
	cmdHandshake   = 6  // identity and naming, replies with an empty ack
	cmdHeartbeat   = 32 // periodic keep-alive, replies with server time
	cmdStateUpdate = 99 // telemetry push from the device, no reply
	cmdControl     = 98 // server-initiated state change
)

// serverInitiated holds the codes the server sends and therefore never
// acknowledges when a device echoes them back. 15 has been observed from
// the vendor cloud; its meaning is unknown.
var serverInitiated = map[int64]bool{
	15:         true,
	cmdControl: true,
}

// dispatch routes one inbound message by command code. A nil return means
// no reply goes on the wire. Commands outside the table get the default
// empty acknowledgment, unless they belong to the server-initiated set.
func (s *Session) dispatch(cmd int64, msg protocol.Message) protocol.Message {
	switch cmd {
	case cmdHello:
		return s.handleHello(msg)
	case cmdHandshake:
		return s.handleHandshake(msg)
	case cmdHeartbeat:
		return s.handleHeartbeat(msg)
	case cmdStateUpdate:
		return s.handleStateUpdate(msg)
	default:
		if serverInitiated[cmd] {
			return nil
		}
		logging.Debug("Unknown command, sending empty ack",
			zap.String("remote_addr", s.remoteIP),
			zap.Int64("cmd", cmd),
		)
		return protocol.Message{}
	}
}

// handleHello records the device's capability metadata and performs the key
// exchange for frame type 0x64. The exchange is idempotent: the key is
// generated on first hello and returned unchanged on every later one.
func (s *Session) handleHello(msg protocol.Message) protocol.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.softwareVersion, _ = msg.String("softwareVersion")
	s.hardwareVersion, _ = msg.String("hardwareVersion")
	s.language, _ = msg.String("language")
	s.modelID, _ = msg.String("modelId")

	keyByte := protocol.FrameTypeDK.KeyByte()
	key, ok := s.keys[keyByte]
	if !ok {
		key = []byte(randomString(sessionKeyAlphabet, sessionKeyLength))
		s.keys[keyByte] = key
		logging.Debug("Negotiated new session key", zap.String("remote_addr", s.remoteIP))
	}

	return protocol.Message{"key": string(key)}
}

// handleHandshake records the uid and derives a display name: an override
// from the device-settings table when the self-reported localIp has one,
// otherwise a name built from the observed address.
func (s *Session) handleHandshake(msg protocol.Message) protocol.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.uid, _ = msg.String("uid")
	s.deviceName = "Homemate Device " + s.remoteIP

	if localIP, ok := msg.String("localIp"); ok {
		if name, found := s.settings(localIP); found {
			if name == "" {
				s.deviceName = "Homemate Device " + localIP
			} else {
				s.deviceName = name
			}
			logging.Debug("Applied device name override",
				zap.String("local_ip", localIP),
				zap.String("device_name", s.deviceName),
			)
		}
	}

	logging.Info("Device identified",
		zap.String("remote_addr", s.remoteIP),
		zap.String("device_id", string(s.deviceID[:])),
		zap.String("device_name", s.deviceName),
	)

	return protocol.Message{}
}

// handleHeartbeat caches the uid and answers with the current server time.
func (s *Session) handleHeartbeat(msg protocol.Message) protocol.Message {
	s.mu.Lock()
	if uid, ok := msg.String("uid"); ok {
		s.uid = uid
	}
	s.mu.Unlock()

	return protocol.Message{"utc": time.Now().Unix()}
}

// handleStateUpdate caches the pushed telemetry and fans it out to every
// registered observer. The device expects no reply to this command.
func (s *Session) handleStateUpdate(msg protocol.Message) protocol.Message {
	s.mu.Lock()

	lighting, _ := msg.String("lightingState")
	on := lighting == "on"
	s.switchOn = &on

	switch motor, _ := msg.String("motorState"); motor {
	case "goingUp":
		s.moving = 1
	case "goingDown":
		s.moving = -1
	default:
		s.moving = 0
	}

	if pos, ok := msg.Int("motorPosition"); ok {
		s.position = int(pos)
	}

	logging.Debug("State update",
		zap.String("remote_addr", s.remoteIP),
		zap.Bool("switch_on", on),
		zap.Int("moving", s.moving),
		zap.Int("position", s.position),
	)

	s.mu.Unlock()

	s.notifyCallbacks()
	return nil
}
