package tagstream

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrInvalidConfig is returned when the client configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrSessionRequired is returned when a stream is opened without a session ID
	ErrSessionRequired = errors.New("session id is required")

	// ErrStreamClosed is returned when writing to or closing a closed stream
	ErrStreamClosed = errors.New("stream closed")

	// ErrNoStore is returned by storage operations when no Store is configured
	ErrNoStore = errors.New("no store configured")

	// ErrStorage is returned when a storage operation failed
	ErrStorage = errors.New("storage operation failed")

	// ErrHook is returned when a hook rejected an event
	ErrHook = errors.New("hook failed")
)

// Error represents an error with additional context
type Error struct {
	Op       string         // Operation that failed
	Err      error          // Underlying error
	StreamID string         // Stream ID if applicable
	Context  map[string]any // Additional context
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.StreamID != "" {
		return fmt.Sprintf("%s (stream=%s): %v", e.Op, e.StreamID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// WithContext adds additional context to the error
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// NewError creates a new Error
func NewError(op string, err error) *Error {
	return &Error{
		Op:  op,
		Err: err,
	}
}

// NewStreamError creates a new Error with stream ID
func NewStreamError(op string, streamID string, err error) *Error {
	return &Error{
		Op:       op,
		Err:      err,
		StreamID: streamID,
	}
}
