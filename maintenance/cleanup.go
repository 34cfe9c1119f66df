// Package maintenance runs periodic housekeeping on stored messages.
package maintenance

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/youssefsiam38/tagstream/storage"
)

// Default cleanup configuration values
const (
	DefaultCleanupInterval  = 10 * time.Minute
	DefaultPartialRetention = 24 * time.Hour
)

// CleanupConfig holds configuration for the cleanup service.
type CleanupConfig struct {
	// Interval is how often to run cleanup operations.
	// Default: 10 minutes
	Interval time.Duration

	// Retention is how long any message is kept. Zero keeps messages forever.
	Retention time.Duration

	// PartialRetention is how long truncated messages are kept. Zero keeps
	// them as long as Retention.
	// Default: 24 hours
	PartialRetention time.Duration

	// OnCleanup is called after a pass that deleted messages.
	OnCleanup func(result *CleanupResult)

	// OnError is called when a cleanup operation fails.
	OnError func(err error)

	// now is overridden in tests.
	now func() time.Time
}

// DefaultCleanupConfig returns the default cleanup configuration.
func DefaultCleanupConfig() *CleanupConfig {
	return &CleanupConfig{
		Interval:         DefaultCleanupInterval,
		PartialRetention: DefaultPartialRetention,
	}
}

// CleanupResult holds the results of a cleanup operation.
type CleanupResult struct {
	// ExpiredMessages is the number of messages older than Retention.
	ExpiredMessages int

	// PartialMessages is the number of truncated messages older than PartialRetention.
	PartialMessages int

	// Errors contains any errors that occurred during cleanup.
	Errors []error
}

// Total returns the number of deleted messages.
func (r *CleanupResult) Total() int {
	return r.ExpiredMessages + r.PartialMessages
}

// Cleanup deletes expired messages on an interval.
type Cleanup struct {
	store  storage.Pruner
	config *CleanupConfig

	started atomic.Bool
	done    chan struct{}
	cancel  context.CancelFunc
}

// NewCleanup creates a new cleanup service.
func NewCleanup(store storage.Pruner, config *CleanupConfig) (*Cleanup, error) {
	if config == nil {
		config = DefaultCleanupConfig()
	}
	if config.Interval == 0 {
		config.Interval = DefaultCleanupInterval
	}
	if config.Interval < 0 || config.Retention < 0 || config.PartialRetention < 0 {
		return nil, fmt.Errorf("%w: durations must not be negative", ErrInvalidConfig)
	}
	if config.Retention == 0 && config.PartialRetention == 0 {
		return nil, fmt.Errorf("%w: Retention or PartialRetention must be set", ErrInvalidConfig)
	}
	if config.now == nil {
		config.now = time.Now
	}

	return &Cleanup{
		store:  store,
		config: config,
	}, nil
}

// Start begins the cleanup loop.
// It returns immediately and runs cleanup operations in a goroutine.
func (c *Cleanup) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go c.run(ctx)

	return nil
}

// Stop stops the cleanup loop.
func (c *Cleanup) Stop(ctx context.Context) error {
	if !c.started.Load() {
		return ErrNotStarted
	}

	c.cancel()
	<-c.done

	c.started.Store(false)
	return nil
}

func (c *Cleanup) run(ctx context.Context) {
	defer close(c.done)

	// Run cleanup immediately on start
	c.runCleanup(ctx)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.runCleanup(ctx)
		}
	}
}

func (c *Cleanup) runCleanup(ctx context.Context) {
	result := c.RunOnce(ctx)

	if c.config.OnCleanup != nil && result.Total() > 0 {
		c.config.OnCleanup(result)
	}

	if c.config.OnError != nil {
		for _, err := range result.Errors {
			c.config.OnError(err)
		}
	}
}

// RunOnce performs cleanup operations once and returns the result.
// This can be called manually for testing or one-off cleanup.
func (c *Cleanup) RunOnce(ctx context.Context) *CleanupResult {
	result := &CleanupResult{}
	now := c.config.now()

	// Partial messages first, so the counts don't overlap
	if c.config.PartialRetention > 0 {
		n, err := c.store.PruneMessages(ctx, now.Add(-c.config.PartialRetention), true)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("prune partial messages: %w", err))
		} else {
			result.PartialMessages = n
		}
	}

	if c.config.Retention > 0 {
		n, err := c.store.PruneMessages(ctx, now.Add(-c.config.Retention), false)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("prune messages: %w", err))
		} else {
			result.ExpiredMessages = n
		}
	}

	return result
}

// IsRunning returns true if the cleanup service is running.
func (c *Cleanup) IsRunning() bool {
	return c.started.Load()
}
