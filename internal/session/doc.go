// Package session implements the per-connection state machine of the
// HomeMate protocol.
//
// One Session exists per device TCP connection. It owns the socket, the
// key table, the serial counter and the cached telemetry, and it runs the
// read loop: one read yields one frame, which is decoded, decrypted and
// dispatched by command code. Some commands get a reply (framed with the
// same type and key as the request), some are fire-and-forget pushes from
// the device, and two codes only ever originate from the server and are
// never acknowledged when echoed back.
//
// Identity, key negotiation and boundary registration are all one-shot
// transitions:
//
//   - the device id is assigned on the first frame (generated when the
//     peer presents the all-zero sentinel, adopted verbatim otherwise)
//   - the type-0x64 session key is generated on the first hello and then
//     returned unchanged on every later hello
//   - the session is pushed to the notification hub once per entity kind,
//     on the first heartbeat
//
// A session's state is mutated both by its read loop and by external
// callers through OrderStateChange, so every mutation and every socket
// write happens under the session mutex.
package session
