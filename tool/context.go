package tool

import (
	"context"

	"github.com/google/uuid"
)

// Context keys for stream information passed to tools
type contextKey string

const (
	streamIDKey  contextKey = "tagstream_stream_id"
	sessionIDKey contextKey = "tagstream_session_id"
	variablesKey contextKey = "tagstream_variables"
)

// StreamContext identifies the stream a tool call was parsed from.
// Tools can access this via GetStreamContext() or the GetVariable() helper.
type StreamContext struct {
	// StreamID is the unique identifier of the stream, also the stored message ID
	StreamID uuid.UUID

	// SessionID groups the streams of one conversation
	SessionID string

	// Variables contains caller-supplied values such as a working directory
	// or tenant ID
	Variables map[string]any
}

// WithStreamContext attaches stream context to the given context.
// The client calls this before dispatching tool calls.
func WithStreamContext(ctx context.Context, sc StreamContext) context.Context {
	ctx = context.WithValue(ctx, streamIDKey, sc.StreamID)
	ctx = context.WithValue(ctx, sessionIDKey, sc.SessionID)
	ctx = context.WithValue(ctx, variablesKey, sc.Variables)
	return ctx
}

// GetStreamContext extracts the stream context from ctx.
// Returns false if the context was not enriched with stream information.
func GetStreamContext(ctx context.Context) (StreamContext, bool) {
	streamID, ok1 := ctx.Value(streamIDKey).(uuid.UUID)
	sessionID, ok2 := ctx.Value(sessionIDKey).(string)
	vars, _ := ctx.Value(variablesKey).(map[string]any)

	if !ok1 || !ok2 {
		return StreamContext{}, false
	}
	return StreamContext{StreamID: streamID, SessionID: sessionID, Variables: vars}, true
}

// GetVariable extracts a single variable from the context by key.
// Returns the zero value and false if the variable is missing or has the
// wrong type.
//
// Example:
//
//	cwd, ok := tool.GetVariable[string](ctx, "cwd")
func GetVariable[T any](ctx context.Context, key string) (T, bool) {
	var zero T
	vars, _ := ctx.Value(variablesKey).(map[string]any)
	val, ok := vars[key]
	if !ok {
		return zero, false
	}
	typed, ok := val.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// GetVariableOr extracts a variable from the context or returns the default value.
func GetVariableOr[T any](ctx context.Context, key string, defaultValue T) T {
	val, ok := GetVariable[T](ctx, key)
	if !ok {
		return defaultValue
	}
	return val
}
