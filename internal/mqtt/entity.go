package mqtt

import (
	"fmt"
	"strings"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/bluekiller/homemate-bridge/internal/logging"
	"github.com/bluekiller/homemate-bridge/internal/notify"
)

// Entity builds the MQTT surface for one device: an observer that republishes
// state on every change, and a command subscription routed to the device.
// Use it as the notify.EntityFactory for both hub queues.
func (p *Publisher) Entity(d notify.Device) notify.Entity {
	e := &deviceEntity{pub: p, device: d}
	e.handle = d.RegisterCallback(e.publish)

	topic := p.commandTopic(d.UID())
	token := p.client.Subscribe(topic, p.cfg.QoS, func(_ pahomqtt.Client, m pahomqtt.Message) {
		e.handleCommand(string(m.Payload()))
	})
	go func() {
		if token.WaitTimeout(publishTimeout) && token.Error() != nil {
			logging.Warn("MQTT subscribe failed", zap.String("topic", topic), zap.Error(token.Error()))
		}
	}()

	// Retained initial state so subscribers see the device immediately.
	e.publish()
	return e
}

// deviceEntity pins one logical device (one uid) to its topics across
// reconnects.
type deviceEntity struct {
	pub *Publisher

	mu     sync.Mutex
	device notify.Device
	handle notify.CallbackHandle
}

// Rebind moves the observer from the dead session to the reconnected one.
// The command subscription needs no change; its handler resolves the current
// device on every message.
func (e *deviceEntity) Rebind(d notify.Device) {
	e.mu.Lock()
	old, oldHandle := e.device, e.handle
	e.device = d
	e.handle = d.RegisterCallback(e.publish)
	e.mu.Unlock()

	old.RemoveCallback(oldHandle)
	e.publish()
}

func (e *deviceEntity) current() notify.Device {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.device
}

func (e *deviceEntity) publish() {
	e.pub.publishState(e.current())
}

func (e *deviceEntity) handleCommand(payload string) {
	d := e.current()

	req, err := parseCommand(payload)
	if err != nil {
		logging.Warn("Ignoring MQTT command",
			zap.String("uid", d.UID()),
			zap.String("payload", payload),
			zap.Error(err),
		)
		return
	}

	if err := d.OrderStateChange(req); err != nil {
		logging.Error("Failed to send control frame",
			zap.String("uid", d.UID()),
			zap.Error(err),
		)
	}
}

// parseCommand maps the plain-text command vocabulary onto state changes.
func parseCommand(payload string) (notify.StateChange, error) {
	switch strings.ToLower(strings.TrimSpace(payload)) {
	case "on":
		return notify.LightOn, nil
	case "off":
		return notify.LightOff, nil
	case "open", "up":
		return notify.CoverUp, nil
	case "close", "down":
		return notify.CoverDown, nil
	case "stop":
		return notify.CoverStop, nil
	default:
		return notify.StateChange{}, fmt.Errorf("unknown command %q", payload)
	}
}
