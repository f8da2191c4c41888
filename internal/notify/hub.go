package notify

import (
	"go.uber.org/zap"

	"github.com/bluekiller/homemate-bridge/internal/logging"
)

// queueDepth bounds each per-kind queue. A device is pushed at most once
// per connection, so the queue only backs up when no consumer is draining
// it at all.
const queueDepth = 16

// Hub owns one queue per entity kind. Sessions push themselves in, exactly
// once per kind, on their first heartbeat; consumers drain with an Updater.
type Hub struct {
	light chan Device
	cover chan Device
}

// NewHub creates a hub with bounded queues for both entity kinds.
func NewHub() *Hub {
	return &Hub{
		light: make(chan Device, queueDepth),
		cover: make(chan Device, queueDepth),
	}
}

// Push hands a device to the consumers of the given kind. It never blocks
// the session's read loop: when no consumer is keeping up the push is
// dropped and logged, and the device will be re-offered on its next
// reconnect.
func (h *Hub) Push(kind Kind, d Device) {
	q := h.Queue(kind)
	if q == nil {
		logging.Warn("Push to unknown entity kind", zap.String("kind", string(kind)))
		return
	}

	select {
	case q <- d:
	default:
		logging.Warn("Notification queue full, dropping device push",
			zap.String("kind", string(kind)),
			zap.String("uid", d.UID()),
		)
	}
}

// Queue returns the channel for one entity kind, or nil for an unknown kind.
func (h *Hub) Queue(kind Kind) chan Device {
	switch kind {
	case KindLight:
		return h.light
	case KindCover:
		return h.cover
	default:
		return nil
	}
}
