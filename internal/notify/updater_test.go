package notify

import (
	"context"
	"testing"
	"time"
)

// fakeEntity records rebinds.
type fakeEntity struct {
	device  Device
	rebinds int
}

func (e *fakeEntity) Rebind(d Device) {
	e.device = d
	e.rebinds++
}

func TestUpdaterDedupsByUID(t *testing.T) {
	created := 0
	factory := func(d Device) Entity {
		created++
		return &fakeEntity{device: d}
	}
	u := NewUpdater(nil, factory)

	first := &fakeDevice{uid: "a"}
	u.consume(first)
	u.consume(&fakeDevice{uid: "b"})

	if created != 2 {
		t.Errorf("factory called %d times, want 2", created)
	}
	if u.Len() != 2 {
		t.Errorf("Len() = %d, want 2", u.Len())
	}

	// Same uid again is a reconnect: the existing entity is rebound to the
	// new device, no new entity is created.
	reconnected := &fakeDevice{uid: "a"}
	u.consume(reconnected)

	if created != 2 {
		t.Errorf("factory called %d times after reconnect, want 2", created)
	}
	entity := u.entities["a"].(*fakeEntity)
	if entity.rebinds != 1 {
		t.Errorf("rebinds = %d, want 1", entity.rebinds)
	}
	if entity.device != reconnected {
		t.Error("entity still bound to the dead device")
	}
}

func TestUpdaterRunConsumesQueue(t *testing.T) {
	queue := make(chan Device, 4)
	bound := make(chan Device, 4)
	factory := func(d Device) Entity {
		bound <- d
		return &fakeEntity{device: d}
	}

	u := NewUpdater(queue, factory)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		u.Run(ctx)
		close(done)
	}()

	d := &fakeDevice{uid: "a"}
	queue <- d

	select {
	case got := <-bound:
		if got != d {
			t.Error("factory received a different device")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("factory never called")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not observe cancellation")
	}
}
