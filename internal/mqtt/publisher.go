package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/bluekiller/homemate-bridge/internal/config"
	"github.com/bluekiller/homemate-bridge/internal/logging"
	"github.com/bluekiller/homemate-bridge/internal/notify"
)

const (
	connectTimeout    = 10 * time.Second
	publishTimeout    = 5 * time.Second
	disconnectQuiesce = 500 // milliseconds
)

// Publisher owns the broker connection. It is safe for concurrent use; all
// publishes are fire-and-forget with failures logged, so a slow broker can
// never stall a session's read loop.
type Publisher struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig
}

// NewPublisher connects to the broker configured in cfg. The connection
// auto-reconnects; an unexpected drop leaves a retained "offline" will on
// the bridge status topic.
func NewPublisher(cfg config.MQTTConfig) (*Publisher, error) {
	p := &Publisher{cfg: cfg}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetWill(p.statusTopic(), "offline", cfg.QoS, true)
	opts.SetOnConnectHandler(func(c pahomqtt.Client) {
		logging.Info("Connected to MQTT broker", zap.String("broker", cfg.Broker))
		c.Publish(p.statusTopic(), cfg.QoS, true, "online")
	})

	p.client = pahomqtt.NewClient(opts)

	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("timed out connecting to MQTT broker %s", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", cfg.Broker, err)
	}

	return p, nil
}

// Disconnect publishes a graceful offline status and drops the connection.
func (p *Publisher) Disconnect() {
	token := p.client.Publish(p.statusTopic(), p.cfg.QoS, true, "offline")
	token.WaitTimeout(publishTimeout)
	p.client.Disconnect(disconnectQuiesce)
}

func (p *Publisher) statusTopic() string {
	return p.cfg.TopicPrefix + "/bridge/status"
}

func (p *Publisher) stateTopic(uid string) string {
	return fmt.Sprintf("%s/%s/state", p.cfg.TopicPrefix, uid)
}

func (p *Publisher) commandTopic(uid string) string {
	return fmt.Sprintf("%s/%s/set", p.cfg.TopicPrefix, uid)
}

// deviceState is the retained per-device state payload. Position is the raw
// device value (100 = fully closed); CoverPosition is the inverted
// open-percentage consumers usually want.
type deviceState struct {
	UID           string `json:"uid"`
	DeviceName    string `json:"device_name"`
	ModelID       string `json:"model_id,omitempty"`
	Power         string `json:"power"`
	Moving        int    `json:"moving"`
	Position      int    `json:"position"`
	CoverPosition int    `json:"cover_position"`
	Closed        bool   `json:"closed"`
}

// publishState snapshots a device's telemetry onto its retained state topic.
// The token wait happens off the caller's goroutine.
func (p *Publisher) publishState(d notify.Device) {
	power := "unknown"
	if on, known := d.SwitchOn(); known {
		if on {
			power = "on"
		} else {
			power = "off"
		}
	}

	position := d.Position()
	payload, err := json.Marshal(deviceState{
		UID:           d.UID(),
		DeviceName:    d.DeviceName(),
		ModelID:       d.ModelID(),
		Power:         power,
		Moving:        d.Moving(),
		Position:      position,
		CoverPosition: 100 - position,
		Closed:        position == 100,
	})
	if err != nil {
		logging.Error("Failed to marshal device state", zap.String("uid", d.UID()), zap.Error(err))
		return
	}

	topic := p.stateTopic(d.UID())
	token := p.client.Publish(topic, p.cfg.QoS, true, payload)
	go func() {
		if token.WaitTimeout(publishTimeout) && token.Error() != nil {
			logging.Warn("MQTT publish failed",
				zap.String("topic", topic),
				zap.Error(token.Error()),
			)
		}
	}()
}
