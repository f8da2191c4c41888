// Package logging provides structured logging for the HomeMate bridge.
//
// It wraps a zap logger with convenience functions for the logging patterns
// used throughout the bridge. All log output uses structured fields:
//
//	logging.Info("Device identified",
//	    zap.String("remote_addr", "192.168.1.40:51523"),
//	    zap.String("device_id", "k3j2..."),
//	)
//
// The level is set once at startup, either from the --log-level flag or the
// HOMEMATE_LOG_LEVEL environment variable. With neither set the logger is a
// nop, which keeps library-style use of the internal packages silent.
//
// All functions are safe for concurrent use.
package logging
