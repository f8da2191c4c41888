package protocol

import "errors"

// Protocol error taxonomy. Every one of these is fatal for the connection
// it occurred on: the session logs it, drops the socket and lets the device
// reconnect. None of them affect other sessions.
var (
	// ErrInvalidFrame reports a frame that failed magic, length, type or
	// CRC validation. There is no partial recovery: byte boundaries are
	// unknown after a bad frame.
	ErrInvalidFrame = errors.New("invalid frame")

	// ErrMissingKey reports a frame whose type byte has no key in the
	// session's key table.
	ErrMissingKey = errors.New("no key for frame type")

	// ErrMalformedPayload reports a decrypted payload that is not valid
	// JSON, has broken padding, or lacks the required cmd/serial fields.
	ErrMalformedPayload = errors.New("malformed payload")
)
