package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bluekiller/homemate-bridge/internal/logging"
)

// pollInterval bounds how long the updater waits on its queue before
// checking for shutdown.
const pollInterval = time.Second

// Entity is whatever a consumer builds around a device: an MQTT topic set,
// a platform entity, a test double. Rebind is called when the same logical
// device (same uid) reconnects with a fresh session; the entity must move
// its observers over to the new device.
type Entity interface {
	Rebind(d Device)
}

// EntityFactory constructs the consumer's entity for a device seen for the
// first time. The factory typically registers a callback on the device.
type EntityFactory func(d Device) Entity

// Updater drains one hub queue, dedups by uid, and keeps one entity alive
// per logical device across reconnects.
type Updater struct {
	queue    <-chan Device
	factory  EntityFactory
	entities map[string]Entity
}

// NewUpdater creates an updater for one queue. Run it on its own goroutine.
func NewUpdater(queue <-chan Device, factory EntityFactory) *Updater {
	return &Updater{
		queue:    queue,
		factory:  factory,
		entities: make(map[string]Entity),
	}
}

// Run consumes the queue until ctx is cancelled. The wait on the queue is
// bounded so external shutdown is always observed promptly, even if the
// channel stays silent.
func (u *Updater) Run(ctx context.Context) {
	timer := time.NewTimer(pollInterval)
	defer timer.Stop()

	for {
		timer.Reset(pollInterval)
		select {
		case <-ctx.Done():
			return
		case d := <-u.queue:
			u.consume(d)
		case <-timer.C:
			// No device this interval; loop to re-check ctx.
		}
	}
}

func (u *Updater) consume(d Device) {
	uid := d.UID()
	if entity, ok := u.entities[uid]; ok {
		logging.Debug("Rebinding entity to reconnected device", zap.String("uid", uid))
		entity.Rebind(d)
		return
	}

	logging.Debug("Creating entity for new device", zap.String("uid", uid))
	u.entities[uid] = u.factory(d)
}

// Len reports how many distinct devices this updater has seen.
func (u *Updater) Len() int {
	return len(u.entities)
}
