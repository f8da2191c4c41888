package session

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/bluekiller/homemate-bridge/internal/logging"
	"github.com/bluekiller/homemate-bridge/internal/notify"
	"github.com/bluekiller/homemate-bridge/internal/protocol"
)

// Fixed identity literals matching the vendor Android app's signature.
// Devices reject control frames that do not look like they came from the
// official client.
const (
	clientVersion   = "4.9.22.308"
	clientType      = 1
	clientDebugInfo = "Android_ZhiJia365_30_4.9.22.308"
	clientUserName  = "a387fe7994e54e0095e8666a32cfd50a"
)

// OrderStateChange builds and transmits a cmd-98 control frame for the
// requested state change. No synchronous reply is expected: the device's
// next state-update push is the only acknowledgment.
//
// The light branch is a no-op until the device has pushed its power state
// at least once; toggling a relay whose current state is unknown makes the
// device drop the connection. The serial counter is incremented exactly
// once per transmitted command, even if frame construction fails later.
func (s *Session) OrderStateChange(req notify.StateChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var controlField string
	switch req.Target {
	case notify.ControlLight:
		if s.switchOn == nil {
			logging.Debug("Dropping light control, no power state observed yet",
				zap.String("remote_addr", s.remoteIP),
			)
			return nil
		}
		controlField = "lightingCtrl"
	case notify.ControlCover:
		controlField = "motorCtrl"
	default:
		return fmt.Errorf("unknown control target %d", req.Target)
	}

	if !s.assigned {
		return fmt.Errorf("session has no identity yet")
	}

	serial := s.serial
	s.serial++

	deviceID := string(s.deviceID[:])
	payload := protocol.Message{
		"cmd":             cmdControl,
		"serial":          serial,
		"uid":             s.uid,
		"clientSessionId": deviceID,
		"deviceId":        deviceID,
		"ver":             clientVersion,
		"clientType":      clientType,
		"fromMq":          "true",
		"respByAcc":       "false",
		"debugInfo":       clientDebugInfo,
		"userName":        clientUserName,
		controlField:      req.Value,
	}

	logging.Info("Sending state change",
		zap.String("remote_addr", s.remoteIP),
		zap.String("control", controlField),
		zap.String("value", req.Value),
		zap.Int64("serial", serial),
	)

	return s.sendLocked(protocol.FrameTypeDK, payload)
}
