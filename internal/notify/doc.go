// Package notify is the boundary between the protocol core and whatever
// platform consumes it (MQTT, a home-automation integration, diagnostics).
//
// The core never knows about entities. When a session has seen its first
// heartbeat it pushes itself onto the Hub, once per entity kind. A consumer
// drains each queue with an Updater, which dedups devices by uid: an unseen
// uid constructs a new entity through the consumer's factory, a seen uid
// rebinds the existing entity to the fresh session, so reconnecting devices
// keep their external identity.
//
// Consumers observe state changes by registering zero-argument callbacks on
// a Device. Callbacks run synchronously on the session's read loop, in
// registration order, so they must return quickly and must not panic; a
// misbehaving listener is the listener's own fault.
package notify
