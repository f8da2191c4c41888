// Package mqtt publishes device state to an MQTT broker and accepts simple
// control commands back.
//
// One retained state topic per device (<prefix>/<uid>/state) mirrors the
// session's cached telemetry; a command topic (<prefix>/<uid>/set) maps
// plain-text commands onto outbound control frames. The bridge's own
// availability is tracked on <prefix>/bridge/status via a retained LWT.
package mqtt
