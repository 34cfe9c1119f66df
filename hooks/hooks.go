// Package hooks lets callers observe a stream as blocks are sealed and tool
// calls run.
package hooks

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/youssefsiam38/tagstream/content"
)

// StreamInfo identifies the stream a hook fires for
type StreamInfo struct {
	StreamID  uuid.UUID
	SessionID string
}

// BlockSealedHook is called once for every block that will not change again,
// in stream order. Partial blocks sealed by finalization are included.
type BlockSealedHook func(ctx context.Context, info StreamInfo, block content.Block) error

// ToolUseHook is called when a tool call's closing tag arrives, before it is
// dispatched. Returning an error keeps the call from being dispatched.
type ToolUseHook func(ctx context.Context, info StreamInfo, call *content.ToolUseBlock) error

// FinalizeHook is called once with the final block list when a stream closes
type FinalizeHook func(ctx context.Context, info StreamInfo, blocks []content.Block) error

// ToolResultHook is called after a tool call was dispatched
type ToolResultHook func(ctx context.Context, info StreamInfo, call *content.ToolUseBlock, output string, err error) error

// Registry holds all registered hooks
type Registry struct {
	mu          sync.RWMutex
	blockSealed []BlockSealedHook
	toolUse     []ToolUseHook
	finalize    []FinalizeHook
	toolResult  []ToolResultHook
}

// NewRegistry creates a new hook registry
func NewRegistry() *Registry {
	return &Registry{}
}

// OnBlockSealed registers a hook to be called when a block is sealed
func (r *Registry) OnBlockSealed(hook BlockSealedHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blockSealed = append(r.blockSealed, hook)
}

// OnToolUse registers a hook to be called when a tool call completes
func (r *Registry) OnToolUse(hook ToolUseHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toolUse = append(r.toolUse, hook)
}

// OnFinalize registers a hook to be called when a stream closes
func (r *Registry) OnFinalize(hook FinalizeHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finalize = append(r.finalize, hook)
}

// OnToolResult registers a hook to be called after a tool call ran
func (r *Registry) OnToolResult(hook ToolResultHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toolResult = append(r.toolResult, hook)
}

// Use registers every hook that h implements. It accepts *LoggingHooks,
// *VerboseLoggingHooks, *MetricsHooks or any type with matching methods.
func (r *Registry) Use(h any) {
	if v, ok := h.(interface {
		BlockSealed(context.Context, StreamInfo, content.Block) error
	}); ok {
		r.OnBlockSealed(v.BlockSealed)
	}
	if v, ok := h.(interface {
		ToolUse(context.Context, StreamInfo, *content.ToolUseBlock) error
	}); ok {
		r.OnToolUse(v.ToolUse)
	}
	if v, ok := h.(interface {
		Finalize(context.Context, StreamInfo, []content.Block) error
	}); ok {
		r.OnFinalize(v.Finalize)
	}
	if v, ok := h.(interface {
		ToolResult(context.Context, StreamInfo, *content.ToolUseBlock, string, error) error
	}); ok {
		r.OnToolResult(v.ToolResult)
	}
}

// TriggerBlockSealed calls all registered block-sealed hooks
func (r *Registry) TriggerBlockSealed(ctx context.Context, info StreamInfo, block content.Block) error {
	r.mu.RLock()
	hooks := make([]BlockSealedHook, len(r.blockSealed))
	copy(hooks, r.blockSealed)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, info, block); err != nil {
			return err
		}
	}
	return nil
}

// TriggerToolUse calls all registered tool-use hooks
func (r *Registry) TriggerToolUse(ctx context.Context, info StreamInfo, call *content.ToolUseBlock) error {
	r.mu.RLock()
	hooks := make([]ToolUseHook, len(r.toolUse))
	copy(hooks, r.toolUse)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, info, call); err != nil {
			return err
		}
	}
	return nil
}

// TriggerFinalize calls all registered finalize hooks
func (r *Registry) TriggerFinalize(ctx context.Context, info StreamInfo, blocks []content.Block) error {
	r.mu.RLock()
	hooks := make([]FinalizeHook, len(r.finalize))
	copy(hooks, r.finalize)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, info, blocks); err != nil {
			return err
		}
	}
	return nil
}

// TriggerToolResult calls all registered tool-result hooks
func (r *Registry) TriggerToolResult(ctx context.Context, info StreamInfo, call *content.ToolUseBlock, output string, err error) error {
	r.mu.RLock()
	hooks := make([]ToolResultHook, len(r.toolResult))
	copy(hooks, r.toolResult)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if hookErr := hook(ctx, info, call, output, err); hookErr != nil {
			return hookErr
		}
	}
	return nil
}
