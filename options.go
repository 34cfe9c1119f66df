package tagstream

import (
	"time"

	"github.com/youssefsiam38/tagstream/hooks"
	"github.com/youssefsiam38/tagstream/parser"
)

// Option is a functional option for configuring a Client
type Option func(*internalConfig) error

// WithStrategy selects how streams rescan input (default StrategyResumable)
func WithStrategy(s parser.Strategy) Option {
	return func(c *internalConfig) error {
		if s != parser.StrategyResumable && s != parser.StrategyRescan {
			return NewError("WithStrategy", ErrInvalidConfig).
				WithContext("strategy", s)
		}
		c.strategy = s
		return nil
	}
}

// WithHooks replaces the client's hook registry
func WithHooks(h *hooks.Registry) Option {
	return func(c *internalConfig) error {
		if h == nil {
			return NewError("WithHooks", ErrInvalidConfig).
				WithContext("reason", "hooks registry is nil")
		}
		c.hooks = h
		return nil
	}
}

// WithToolTimeout sets the timeout for individual tool executions (default 30s)
func WithToolTimeout(timeout time.Duration) Option {
	return func(c *internalConfig) error {
		if timeout <= 0 {
			return NewError("WithToolTimeout", ErrInvalidConfig).
				WithContext("timeout", timeout).
				WithContext("reason", "timeout must be positive")
		}
		c.toolTimeout = timeout
		return nil
	}
}

// WithAutoDispatch runs complete tool calls when a stream closes. It is on
// by default when Config.Tools is set.
func WithAutoDispatch(enabled bool) Option {
	return func(c *internalConfig) error {
		if enabled && c.tools == nil {
			return NewError("WithAutoDispatch", ErrInvalidConfig).
				WithContext("reason", "auto dispatch needs Config.Tools")
		}
		c.autoDispatch = enabled
		return nil
	}
}

// WithParallelDispatch runs the tool calls of one stream concurrently
func WithParallelDispatch(enabled bool) Option {
	return func(c *internalConfig) error {
		c.parallelDispatch = enabled
		return nil
	}
}

// WithRole sets the role stored with messages (default "assistant")
func WithRole(role string) Option {
	return func(c *internalConfig) error {
		if role == "" {
			return NewError("WithRole", ErrInvalidConfig).
				WithContext("reason", "role must not be empty")
		}
		c.role = role
		return nil
	}
}

// WithVariables passes values to tools through tool.StreamContext
func WithVariables(vars map[string]any) Option {
	return func(c *internalConfig) error {
		c.variables = vars
		return nil
	}
}
