// Package server owns the TCP listener, the registry of live sessions and
// the optional diagnostics endpoint.
//
// Every accepted connection becomes one session.Session running its read
// loop on its own goroutine. The registry tracks live sessions so shutdown
// can force-close every socket (which unblocks each pending read) and so
// diagnostics can snapshot the fleet without touching the protocol path.
//
// Shutdown order: stop accepting, close every registered socket, wait for
// the session goroutines with a bounded grace period.
package server
