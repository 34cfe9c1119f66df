package tagstream

import (
	"fmt"
	"time"

	"github.com/youssefsiam38/tagstream/hooks"
	"github.com/youssefsiam38/tagstream/parser"
	"github.com/youssefsiam38/tagstream/registry"
	"github.com/youssefsiam38/tagstream/storage"
	"github.com/youssefsiam38/tagstream/tool"
)

// Config holds the configuration for a Client.
//
// Example:
//
//	ws, _ := builtin.NewWorkspace(dir)
//	tools := tool.NewRegistry()
//	_ = tools.RegisterAll(ws.Tools())
//	client, _ := tagstream.NewClient(tagstream.Config{
//	    Tools: tools,
//	    Store: pgxv5.New(pool).GetStore(),
//	})
type Config struct {
	// Registry is the tag vocabulary the parser recognizes. If nil it is
	// derived from Tools. One of Registry or Tools is required.
	Registry *registry.Registry

	// Tools executes complete tool calls when auto dispatch is on (optional)
	Tools *tool.Registry

	// Store persists every closed stream as a message (optional)
	Store storage.Store

	// Logger for structured logging (optional)
	Logger Logger
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Registry == nil && c.Tools == nil {
		return fmt.Errorf("%w: Registry or Tools is required", ErrInvalidConfig)
	}
	if c.Registry == nil && c.Tools.Count() == 0 {
		return fmt.Errorf("%w: Tools has no tools registered", ErrInvalidConfig)
	}
	return nil
}

// Default settings
const (
	DefaultRole        = "assistant"
	DefaultToolTimeout = tool.DefaultTimeout
)

// internalConfig holds the full client configuration including optional parameters
type internalConfig struct {
	registry *registry.Registry
	tools    *tool.Registry
	store    storage.Store
	logger   Logger

	strategy         parser.Strategy
	hooks            *hooks.Registry
	toolTimeout      time.Duration
	autoDispatch     bool
	parallelDispatch bool
	role             string
	variables        map[string]any
}

// newInternalConfig creates a new internal config from the public Config
func newInternalConfig(cfg Config) (*internalConfig, error) {
	reg := cfg.Registry
	if reg == nil {
		var err error
		if reg, err = cfg.Tools.TagRegistry(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &internalConfig{
		registry: reg,
		tools:    cfg.Tools,
		store:    cfg.Store,
		logger:   logger,

		// Defaults
		strategy:     parser.StrategyResumable,
		hooks:        hooks.NewRegistry(),
		toolTimeout:  DefaultToolTimeout,
		autoDispatch: cfg.Tools != nil,
		role:         DefaultRole,
	}, nil
}
