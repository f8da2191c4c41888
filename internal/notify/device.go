package notify

// Kind names an entity capability a device exposes at the boundary.
type Kind string

const (
	// KindLight marks devices that can switch a relay/light.
	KindLight Kind = "light"
	// KindCover marks devices that can drive a motorized cover.
	KindCover Kind = "cover"
)

// CallbackHandle identifies one registered state-change observer so it can
// be removed again. Handles are only meaningful on the device that issued
// them.
type CallbackHandle int64

// ControlTarget selects which capability a StateChange drives.
type ControlTarget int

const (
	// ControlLight drives the relay. Values: "on", "off".
	ControlLight ControlTarget = iota
	// ControlCover drives the motor. Values: "up", "down", "stop".
	ControlCover
)

// StateChange is a request to alter device state, the sole externally
// invocable mutator on a session.
type StateChange struct {
	Target ControlTarget
	Value  string
}

// LightOn and friends are the requests consumers actually send.
var (
	LightOn   = StateChange{Target: ControlLight, Value: "on"}
	LightOff  = StateChange{Target: ControlLight, Value: "off"}
	CoverUp   = StateChange{Target: ControlCover, Value: "up"}
	CoverDown = StateChange{Target: ControlCover, Value: "down"}
	CoverStop = StateChange{Target: ControlCover, Value: "stop"}
)

// Device is the session surface visible outside the protocol core: identity,
// cached telemetry, observer registration and the outbound command builder.
// Implementations are safe for concurrent use.
type Device interface {
	// UID is the device-declared logical identifier, stable across
	// reconnects. Distinct from the 32-byte wire device id.
	UID() string
	// DeviceID is the 32-byte wire identifier as a string.
	DeviceID() string
	// DeviceName is the display name derived during the handshake.
	DeviceName() string

	SoftwareVersion() string
	HardwareVersion() string
	ModelID() string
	Language() string

	// SwitchOn reports the cached power state. known is false until the
	// device has pushed its first state update.
	SwitchOn() (on, known bool)
	// Moving reports motor direction: +1 opening, -1 closing, 0 idle.
	Moving() int
	// Position reports the raw device position, 0..100.
	Position() int

	// RegisterCallback adds a state-change observer, invoked with no
	// arguments after every telemetry mutation.
	RegisterCallback(fn func()) CallbackHandle
	// RemoveCallback removes a previously registered observer.
	RemoveCallback(h CallbackHandle)

	// OrderStateChange builds and transmits a control frame. No reply is
	// expected; the device's next state-update push is the acknowledgment.
	OrderStateChange(req StateChange) error
}
