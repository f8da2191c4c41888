package protocol

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"
)

// Frame layout constants.
const (
	// HeaderSize is the fixed size of the frame header: magic(2) +
	// length(2) + type(2) + crc(4) + device id(32).
	HeaderSize = 42

	// DeviceIDSize is the size of the raw device id field.
	DeviceIDSize = 32

	// MaxFrameSize is the largest frame a device has been observed to
	// send. Devices transmit one complete frame per TCP segment.
	MaxFrameSize = 1024
)

// Magic is the two-byte constant that opens every frame.
var Magic = [2]byte{0x68, 0x64}

// FrameType is the two-byte frame type field. Only two values have been
// observed on the wire. The first byte doubles as the key selector.
type FrameType [2]byte

var (
	// FrameTypePK frames are encrypted under the well-known factory key.
	// Devices use this type until a session key has been negotiated.
	FrameTypePK = FrameType{0x70, 0x6B}

	// FrameTypeDK frames are encrypted under the per-session key returned
	// by the hello exchange. Server-initiated control frames always use
	// this type.
	FrameTypeDK = FrameType{0x64, 0x6B}
)

// KeyByte returns the byte that selects this type's entry in a key table.
func (t FrameType) KeyByte() byte { return t[0] }

func (t FrameType) String() string {
	return fmt.Sprintf("0x%02x%02x", t[0], t[1])
}

func validFrameType(t FrameType) bool {
	return t == FrameTypePK || t == FrameTypeDK
}

// Frame is one decoded (but not yet decrypted) protocol frame.
type Frame struct {
	Type       FrameType
	CRC        uint32
	DeviceID   [DeviceIDSize]byte
	Ciphertext []byte
	Raw        []byte
}

// IsUnsetDeviceID reports whether id is the all-zero "assign me a new id"
// sentinel a factory-fresh device presents on first contact.
func IsUnsetDeviceID(id [DeviceIDSize]byte) bool {
	return id == [DeviceIDSize]byte{}
}

// Decode validates and parses one complete frame. The declared length must
// match the physical length exactly; the protocol does not stream frames
// across reads. Any validation failure returns ErrInvalidFrame and the
// caller must treat the connection as dead.
func Decode(data []byte) (*Frame, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, want at least %d", ErrInvalidFrame, len(data), HeaderSize)
	}

	if data[0] != Magic[0] || data[1] != Magic[1] {
		return nil, fmt.Errorf("%w: bad magic 0x%02x%02x", ErrInvalidFrame, data[0], data[1])
	}

	if length := binary.BigEndian.Uint16(data[2:4]); int(length) != len(data) {
		return nil, fmt.Errorf("%w: declared length %d, got %d bytes", ErrInvalidFrame, length, len(data))
	}

	var frameType FrameType
	copy(frameType[:], data[4:6])
	if !validFrameType(frameType) {
		return nil, fmt.Errorf("%w: unknown frame type %s", ErrInvalidFrame, frameType)
	}

	declaredCRC := binary.BigEndian.Uint32(data[6:10])
	if computed := crc32.ChecksumIEEE(data[HeaderSize:]); computed != declaredCRC {
		return nil, fmt.Errorf("%w: crc mismatch, declared 0x%08x computed 0x%08x", ErrInvalidFrame, declaredCRC, computed)
	}

	frame := &Frame{
		Type: frameType,
		CRC:  declaredCRC,
		Raw:  data,
	}
	copy(frame.DeviceID[:], data[10:HeaderSize])
	frame.Ciphertext = data[HeaderSize:]

	return frame, nil
}

// Encode encrypts msg under key and assembles a complete frame: the CRC
// covers the ciphertext, the length field covers the entire frame including
// itself. All integers are big-endian.
func Encode(frameType FrameType, key []byte, deviceID [DeviceIDSize]byte, msg Message) ([]byte, error) {
	if !validFrameType(frameType) {
		return nil, fmt.Errorf("%w: unknown frame type %s", ErrInvalidFrame, frameType)
	}

	plaintext, err := msg.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	ciphertext, err := Encrypt(key, plaintext)
	if err != nil {
		return nil, fmt.Errorf("encrypt payload: %w", err)
	}

	total := HeaderSize + len(ciphertext)
	if total > math.MaxUint16 {
		return nil, fmt.Errorf("%w: frame of %d bytes exceeds length field", ErrInvalidFrame, total)
	}

	frame := make([]byte, total)
	copy(frame[0:2], Magic[:])
	binary.BigEndian.PutUint16(frame[2:4], uint16(total))
	copy(frame[4:6], frameType[:])
	binary.BigEndian.PutUint32(frame[6:10], crc32.ChecksumIEEE(ciphertext))
	copy(frame[10:HeaderSize], deviceID[:])
	copy(frame[HeaderSize:], ciphertext)

	return frame, nil
}

// String returns a debug representation of the frame.
func (f *Frame) String() string {
	return fmt.Sprintf("Frame{type=%s, crc=0x%08x, ciphertext=%d bytes}", f.Type, f.CRC, len(f.Ciphertext))
}
