package session

import (
	"net"
	"testing"
	"time"

	"github.com/bluekiller/homemate-bridge/internal/notify"
	"github.com/bluekiller/homemate-bridge/internal/protocol"
)

// orderAsync runs OrderStateChange off the test goroutine, since the write
// blocks on the pipe until the device side reads the frame.
func (h *harness) orderAsync(req notify.StateChange) chan error {
	errCh := make(chan error, 1)
	go func() { errCh <- h.sess.OrderStateChange(req) }()
	return errCh
}

func (h *harness) orderResult(errCh chan error) error {
	h.t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(testTimeout):
		h.t.Fatal("OrderStateChange did not return")
		return nil
	}
}

func TestOrderStateChangeCover(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.hello(1)
	h.heartbeat(2, "cover-uid")

	errCh := h.orderAsync(notify.CoverUp)
	frameType, msg, frameID := h.recv()
	if err := h.orderResult(errCh); err != nil {
		t.Fatalf("OrderStateChange() error = %v", err)
	}

	if frameType != protocol.FrameTypeDK {
		t.Errorf("frame type = %s, want %s", frameType, protocol.FrameTypeDK)
	}
	if string(frameID[:]) != h.sess.DeviceID() {
		t.Errorf("frame device id = %q, want %q", frameID[:], h.sess.DeviceID())
	}

	if cmd, _ := msg.Cmd(); cmd != cmdControl {
		t.Errorf("cmd = %d, want %d", cmd, cmdControl)
	}
	if serial, _ := msg.Serial(); serial != 0 {
		t.Errorf("serial = %d, want 0", serial)
	}
	if v, _ := msg.String("motorCtrl"); v != "up" {
		t.Errorf("motorCtrl = %q, want up", v)
	}
	if _, ok := msg["lightingCtrl"]; ok {
		t.Error("cover command must not carry lightingCtrl")
	}
	if v, _ := msg.String("uid"); v != "cover-uid" {
		t.Errorf("uid = %q, want cover-uid", v)
	}

	// Client identity fields matching the vendor app.
	if v, _ := msg.String("ver"); v != clientVersion {
		t.Errorf("ver = %q, want %q", v, clientVersion)
	}
	if v, _ := msg.Int("clientType"); v != clientType {
		t.Errorf("clientType = %d, want %d", v, clientType)
	}
	if v, _ := msg.String("fromMq"); v != "true" {
		t.Errorf("fromMq = %q, want \"true\"", v)
	}
	if v, _ := msg.String("respByAcc"); v != "false" {
		t.Errorf("respByAcc = %q, want \"false\"", v)
	}
	if v, _ := msg.String("debugInfo"); v != clientDebugInfo {
		t.Errorf("debugInfo = %q, want %q", v, clientDebugInfo)
	}
	if v, _ := msg.String("userName"); v != clientUserName {
		t.Errorf("userName = %q, want %q", v, clientUserName)
	}
	if v, _ := msg.String("clientSessionId"); v != h.sess.DeviceID() {
		t.Errorf("clientSessionId = %q, want %q", v, h.sess.DeviceID())
	}
	if v, _ := msg.String("deviceId"); v != h.sess.DeviceID() {
		t.Errorf("deviceId = %q, want %q", v, h.sess.DeviceID())
	}

	if got := h.sess.Serial(); got != 1 {
		t.Errorf("Serial() = %d, want 1", got)
	}

	// The next command uses the incremented serial.
	errCh = h.orderAsync(notify.CoverStop)
	_, second, _ := h.recv()
	if err := h.orderResult(errCh); err != nil {
		t.Fatalf("OrderStateChange() error = %v", err)
	}
	if serial, _ := second.Serial(); serial != 1 {
		t.Errorf("second serial = %d, want 1", serial)
	}
	if v, _ := second.String("motorCtrl"); v != "stop" {
		t.Errorf("motorCtrl = %q, want stop", v)
	}
	if got := h.sess.Serial(); got != 2 {
		t.Errorf("Serial() = %d, want 2", got)
	}
}

func TestOrderStateChangeLightUnknownStateIsNoop(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.hello(1)

	if err := h.sess.OrderStateChange(notify.LightOn); err != nil {
		t.Fatalf("OrderStateChange() error = %v, want nil no-op", err)
	}
	if got := h.sess.Serial(); got != 0 {
		t.Errorf("Serial() = %d, want 0 (no-op must not consume a serial)", got)
	}

	// Nothing went on the wire.
	buf := make([]byte, protocol.MaxFrameSize)
	_ = h.dev.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if n, err := h.dev.Read(buf); err == nil {
		t.Errorf("device received %d unexpected bytes", n)
	}
}

func TestOrderStateChangeLightAfterStateKnown(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.hello(1)
	h.send(protocol.FrameTypePK, protocol.Message{
		"cmd":           cmdStateUpdate,
		"serial":        2,
		"lightingState": "on",
	})
	h.heartbeat(3, "light-uid")

	errCh := h.orderAsync(notify.LightOff)
	_, msg, _ := h.recv()
	if err := h.orderResult(errCh); err != nil {
		t.Fatalf("OrderStateChange() error = %v", err)
	}

	if v, _ := msg.String("lightingCtrl"); v != "off" {
		t.Errorf("lightingCtrl = %q, want off", v)
	}
	if _, ok := msg["motorCtrl"]; ok {
		t.Error("light command must not carry motorCtrl")
	}
	if serial, _ := msg.Serial(); serial != 0 {
		t.Errorf("serial = %d, want 0", serial)
	}
}

func TestOrderStateChangeBeforeIdentity(t *testing.T) {
	serverConn, deviceConn := net.Pipe()
	defer serverConn.Close()
	defer deviceConn.Close()

	s := New(serverConn, nil, nil)
	if err := s.OrderStateChange(notify.CoverUp); err == nil {
		t.Error("OrderStateChange() = nil, want error before identity is fixed")
	}
	if got := s.Serial(); got != 0 {
		t.Errorf("Serial() = %d, want 0", got)
	}
}

func TestOrderStateChangeUnknownTarget(t *testing.T) {
	serverConn, deviceConn := net.Pipe()
	defer serverConn.Close()
	defer deviceConn.Close()

	s := New(serverConn, nil, nil)
	if err := s.OrderStateChange(notify.StateChange{Target: notify.ControlTarget(99), Value: "x"}); err == nil {
		t.Error("OrderStateChange() = nil, want error for unknown target")
	}
}

func TestOrderStateChangeSerialsAreUnique(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.hello(1)
	h.heartbeat(2, "uid")

	const commands = 5

	errs := make([]chan error, 0, commands)
	for i := 0; i < commands; i++ {
		errs = append(errs, h.orderAsync(notify.CoverUp))
	}

	seen := make(map[int64]bool)
	for i := 0; i < commands; i++ {
		_, msg, _ := h.recv()
		serial, ok := msg.Serial()
		if !ok {
			t.Fatal("control frame has no serial")
		}
		if seen[serial] {
			t.Errorf("serial %d issued twice", serial)
		}
		seen[serial] = true
	}
	for _, errCh := range errs {
		if err := h.orderResult(errCh); err != nil {
			t.Fatalf("OrderStateChange() error = %v", err)
		}
	}

	if got := h.sess.Serial(); got != commands {
		t.Errorf("Serial() = %d, want %d", got, commands)
	}
	for i := int64(0); i < commands; i++ {
		if !seen[i] {
			t.Errorf("serial %d never issued", i)
		}
	}
}
