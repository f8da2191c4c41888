package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Message is one decrypted protocol payload: a flat JSON object of scalar
// and string fields. Field order on the wire is not significant.
type Message map[string]any

// DecodeMessage parses a decrypted payload. Numbers are kept as
// json.Number so integer command codes and serials survive intact.
func DecodeMessage(plaintext []byte) (Message, error) {
	dec := json.NewDecoder(bytes.NewReader(plaintext))
	dec.UseNumber()

	var msg Message
	if err := dec.Decode(&msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return msg, nil
}

// Encode serializes the message back to its wire plaintext.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Cmd returns the command code. Every valid inbound message carries one.
func (m Message) Cmd() (int64, bool) {
	return m.Int("cmd")
}

// Serial returns the serial number, echoed back verbatim in replies.
func (m Message) Serial() (int64, bool) {
	return m.Int("serial")
}

// Int returns the named field as an integer. Devices are loose about
// numeric encoding, so json.Number, float64 and native ints all count.
func (m Message) Int(key string) (int64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return i, true
	case float64:
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}

// String returns the named field as a string.
func (m Message) String(key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
