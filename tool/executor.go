package tool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/youssefsiam38/tagstream/content"
)

// DefaultTimeout bounds a single tool execution
const DefaultTimeout = 30 * time.Second

// Executor dispatches complete tool calls to registered tools
type Executor struct {
	registry       *Registry
	validator      *Validator
	defaultTimeout time.Duration
}

// NewExecutor creates a new tool executor
func NewExecutor(registry *Registry) *Executor {
	return &Executor{
		registry:       registry,
		validator:      NewValidator(),
		defaultTimeout: DefaultTimeout,
	}
}

// SetDefaultTimeout sets the default execution timeout
func (e *Executor) SetDefaultTimeout(timeout time.Duration) {
	e.defaultTimeout = timeout
}

// SetValidator replaces the parameter validator
func (e *Executor) SetValidator(v *Validator) {
	e.validator = v
}

// Result is the outcome of dispatching one tool call
type Result struct {
	ToolName string
	Params   *content.Params
	Output   string
	Error    error
	Duration time.Duration
}

// Dispatch validates and executes one tool call. Partial calls are refused
// with ErrPartialToolUse: their parameters may be cut short.
func (e *Executor) Dispatch(ctx context.Context, block *content.ToolUseBlock) *Result {
	start := time.Now()
	result := &Result{
		ToolName: block.Name,
		Params:   block.Params.Clone(),
	}
	defer func() { result.Duration = time.Since(start) }()

	if block.Partial {
		result.Error = fmt.Errorf("%w: %s", ErrPartialToolUse, block.Name)
		return result
	}

	tool, ok := e.registry.Get(block.Name)
	if !ok {
		result.Error = fmt.Errorf("%w: %s", ErrToolNotFound, block.Name)
		return result
	}

	if err := e.validator.ValidateParams(tool.Schema(), result.Params); err != nil {
		result.Error = fmt.Errorf("tool %s: %w", block.Name, err)
		return result
	}

	execCtx, cancel := context.WithTimeout(ctx, e.defaultTimeout)
	defer cancel()

	output, err := tool.Execute(execCtx, result.Params)
	result.Output = output
	result.Error = err

	switch {
	case errors.Is(execCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		result.Error = fmt.Errorf("%w after %v", ErrToolTimeout, e.defaultTimeout)
	case ctx.Err() != nil:
		result.Error = fmt.Errorf("tool execution canceled: %w", ctx.Err())
	}

	return result
}

// DispatchAll executes the complete tool calls in blocks, in order or in
// parallel. Partial calls yield an ErrPartialToolUse result instead of
// running. Results are in call order either way.
func (e *Executor) DispatchAll(ctx context.Context, blocks []*content.ToolUseBlock, parallel bool) []*Result {
	results := make([]*Result, len(blocks))
	if !parallel {
		for i, b := range blocks {
			results[i] = e.Dispatch(ctx, b)
		}
		return results
	}

	var wg sync.WaitGroup
	wg.Add(len(blocks))
	for i, b := range blocks {
		go func(idx int, block *content.ToolUseBlock) {
			defer wg.Done()
			results[idx] = e.Dispatch(ctx, block)
		}(i, b)
	}
	wg.Wait()
	return results
}

// ValidateParams validates a tool call against its tool's schema
func (e *Executor) ValidateParams(block *content.ToolUseBlock) error {
	tool, ok := e.registry.Get(block.Name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrToolNotFound, block.Name)
	}
	return e.validator.ValidateParams(tool.Schema(), block.Params)
}
