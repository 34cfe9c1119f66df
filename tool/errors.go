package tool

import (
	"errors"
	"fmt"
)

var (
	// ErrToolNotFound is returned when a tool call names an unregistered tool
	ErrToolNotFound = errors.New("tool not found")

	// ErrPartialToolUse is returned when dispatch is asked to run a tool call
	// whose closing tag never arrived
	ErrPartialToolUse = errors.New("tool use is partial")

	// ErrInvalidParams is returned when a tool call fails validation
	ErrInvalidParams = errors.New("invalid tool parameters")

	// ErrToolTimeout is returned when a tool exceeds the executor timeout
	ErrToolTimeout = errors.New("tool execution timeout")

	// ErrToolCancelled is a sentinel error for cancelled tools.
	ErrToolCancelled = errors.New("tool cancelled")

	// ErrToolDiscarded is a sentinel error for discarded tools.
	ErrToolDiscarded = errors.New("tool discarded")
)

// ToolCancelError signals that the tool call should not be retried or
// re-issued, e.g. permission denied or the user rejected it.
type ToolCancelError struct {
	err error
}

// Error returns the error message.
func (e *ToolCancelError) Error() string {
	if e.err == nil {
		return "tool cancelled"
	}
	return fmt.Sprintf("tool cancelled: %s", e.err.Error())
}

// Is reports whether the target matches this error type.
func (e *ToolCancelError) Is(target error) bool {
	if target == ErrToolCancelled {
		return true
	}
	_, ok := target.(*ToolCancelError)
	return ok
}

// Unwrap returns the underlying error.
func (e *ToolCancelError) Unwrap() error {
	return e.err
}

// ToolCancel wraps an error to indicate the tool call was refused.
//
// Example:
//
//	func (t *Shell) Execute(ctx context.Context, params *content.Params) (string, error) {
//	    if approval, _ := params.Get("requires_approval"); approval == "true" && !t.approved {
//	        return "", tool.ToolCancel(errors.New("user denied command"))
//	    }
//	    ...
//	}
func ToolCancel(err error) error {
	return &ToolCancelError{err: err}
}

// ToolDiscardError signals that the parameters can never succeed. The model
// should be told and asked for a different call.
type ToolDiscardError struct {
	err error
}

// Error returns the error message.
func (e *ToolDiscardError) Error() string {
	if e.err == nil {
		return "tool discarded"
	}
	return fmt.Sprintf("tool discarded: %s", e.err.Error())
}

// Is reports whether the target matches this error type.
func (e *ToolDiscardError) Is(target error) bool {
	if target == ErrToolDiscarded {
		return true
	}
	_, ok := target.(*ToolDiscardError)
	return ok
}

// Unwrap returns the underlying error.
func (e *ToolDiscardError) Unwrap() error {
	return e.err
}

// ToolDiscard wraps an error to indicate the input was fundamentally invalid.
func ToolDiscard(err error) error {
	return &ToolDiscardError{err: err}
}

// IsToolCancel reports whether err is a ToolCancelError.
func IsToolCancel(err error) bool {
	return errors.Is(err, ErrToolCancelled)
}

// IsToolDiscard reports whether err is a ToolDiscardError.
func IsToolDiscard(err error) bool {
	return errors.Is(err, ErrToolDiscarded)
}
