// Package protocol implements the HomeMate device binary protocol.
//
// HomeMate switches and covers speak a closed TCP protocol. Every message
// on the wire is one self-contained frame:
//
//	offset  size  field
//	0       2     magic (0x68 0x64)
//	2       2     total frame length, big-endian, including this header
//	4       2     frame type (0x70 0x6B or 0x64 0x6B)
//	6       4     CRC32 (IEEE) of everything after offset 42, big-endian
//	10      32    device id (all zeros = "assign me one")
//	42      N     AES-128-ECB encrypted, PKCS#7 padded JSON payload
//
// The payload decrypts to a flat JSON object. Every inbound payload carries
// at least "cmd" (integer command code) and "serial" (echoed back in
// replies). The key used for a frame is selected by the first byte of the
// frame type: type 0x70 frames use a well-known factory key, type 0x64
// frames use a key negotiated during the hello exchange.
//
// # Usage
//
//	frame, err := protocol.Decode(data)
//	if err != nil {
//	    // fatal for this connection
//	}
//	plaintext, err := protocol.Decrypt(key, frame.Ciphertext)
//	msg, err := protocol.DecodeMessage(plaintext)
//
// Construction is symmetric:
//
//	data, err := protocol.Encode(frame.Type, key, deviceID, reply)
//	conn.Write(data)
//
// # Error Handling
//
// Three sentinel errors classify all protocol failures, and all of them are
// fatal for the connection that produced them:
//   - ErrInvalidFrame: magic, length, type or CRC mismatch
//   - ErrMissingKey: no key registered for the frame's type byte
//   - ErrMalformedPayload: the decrypted bytes are not a usable JSON payload
//
// A device is expected to reconnect after its connection is dropped; the
// hello/handshake sequence is idempotent so no state is lost.
//
// # Thread Safety
//
// All functions in this package are stateless and safe for concurrent use.
package protocol
