package ssdb

import (
	"errors"
	"strconv"
)

var (
	// ErrNotConnected is returned (wrapped in a block.ConnectionError) when a
	// request is sent on a client without an open connection.
	ErrNotConnected = errors.New("ssdb: not connected")

	// ErrAlreadyConnected is returned by Connect on a client that already holds
	// a connection. It signals a programming error: the client never reconnects
	// or multiplexes implicitly.
	ErrAlreadyConnected = errors.New("ssdb: already connected")
)

// RequestError is returned when the server answers with a non-success status,
// or when a response frame does not have the shape the command requires.
//
// The frame was read completely, so the connection can be REUSED.
type RequestError struct {
	Command string
	Status  string // Status block received, if any
	Message string
	Err     error // Underlying error, if any
}

func (e *RequestError) Error() string {
	msg := "ssdb: " + e.Command + " failed"
	if e.Status != "" {
		msg += " with status " + strconv.Quote(e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection
func (e *RequestError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns false - the response frame was fully consumed
func (e *RequestError) ShouldCloseConnection() bool {
	return false
}

// IsNotFound reports whether err is a RequestError with the not_found status.
func IsNotFound(err error) bool {
	var re *RequestError
	return errors.As(err, &re) && re.Status == StatusNotFound
}
