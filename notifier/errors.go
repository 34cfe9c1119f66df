package notifier

import "errors"

// Errors returned by the notifier package.
var (
	// ErrAlreadyStarted is returned when Start() is called on an already started notifier.
	ErrAlreadyStarted = errors.New("notifier already started")

	// ErrNotStarted is returned when Stop() is called on a notifier that hasn't started.
	ErrNotStarted = errors.New("notifier not started")

	// ErrNotifyNotSupported is returned when Notify is called but no notifier is available.
	ErrNotifyNotSupported = errors.New("notify not supported")

	// ErrInvalidPayload is returned when Notify is missing the message or session ID.
	ErrInvalidPayload = errors.New("payload requires message and session IDs")

	// ErrListenerClosed is reported to OnError when the listener's channel closes.
	ErrListenerClosed = errors.New("listener closed")
)
