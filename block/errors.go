package block

import (
	"errors"
	"fmt"
)

// Error types for block protocol operations.
// They tell the caller whether the connection can still be used.

// FramingError represents malformed or truncated block framing.
// The stream is left at an unknown position, so the connection MUST be closed.
//
// Common causes:
//   - Length line is not a decimal number
//   - Declared length larger than the bytes left on the stream
//   - Payload not followed by a newline
//   - Stream closed in the middle of a frame
//
// Connection handling: CLOSE connection
type FramingError struct {
	Step    string // Framing step that failed: length, payload, terminator, decode
	Message string
	Err     error // Underlying error, if any
}

func (e *FramingError) Error() string {
	msg := "framing error (" + e.Step + "): " + e.Message
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection
func (e *FramingError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true - framing errors leave the stream out of sync
func (e *FramingError) ShouldCloseConnection() bool {
	return true
}

// ConnectionError wraps I/O errors from transport operations.
// Used to distinguish network/connection issues from framing errors.
//
// Common causes:
//   - Connection refused or reset
//   - Network timeout (context deadline)
//   - Request sent on a client that is not connected
//
// Connection handling: Connection is already broken, CLOSE and potentially RECONNECT
type ConnectionError struct {
	Op  string // Operation that failed (dial, read, write, flush, send)
	Err error  // Underlying error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error during %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true - connection errors mean connection is broken
func (e *ConnectionError) ShouldCloseConnection() bool {
	return true
}

// ErrorWithConnectionState is an interface for errors that indicate
// whether the connection should be closed.
type ErrorWithConnectionState interface {
	error
	ShouldCloseConnection() bool
}

// ShouldCloseConnection reports whether err leaves the connection unusable.
//
// Returns false for nil and for errors implementing ErrorWithConnectionState
// that say so (request-level errors). Unknown error types are treated as fatal.
func ShouldCloseConnection(err error) bool {
	if err == nil {
		return false
	}

	var e ErrorWithConnectionState
	if errors.As(err, &e) {
		return e.ShouldCloseConnection()
	}

	return true
}
