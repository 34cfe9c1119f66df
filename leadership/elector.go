// Package leadership provides leader election between tagstream processes.
//
// Only one process holds a named lease at a time. Housekeeping that must not
// run concurrently, such as maintenance.Cleanup, is started when the lease is
// won and stopped when it is lost.
//
// The lease is a row in PostgreSQL with an expiry. The leader renews it
// before it expires, or another process can take over.
package leadership

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Default configuration values
const (
	DefaultLeaderTTL       = 30 * time.Second
	DefaultElectionPeriod  = 10 * time.Second
	DefaultReelectionDelay = 5 * time.Second
	DefaultLeaseName       = "default"
)

// Store holds leases. The pgxv5 and databasesql stores implement it.
type Store interface {
	LeaderAttemptElect(ctx context.Context, name, leaderID string, ttl time.Duration) (bool, error)
	LeaderAttemptReelect(ctx context.Context, name, leaderID string, ttl time.Duration) (bool, error)
	LeaderResign(ctx context.Context, name, leaderID string) error
}

// Config holds configuration for the leader election system.
type Config struct {
	// LeaseName identifies what is being led. Processes electing for
	// different names do not compete.
	// Default: "default"
	LeaseName string

	// LeaderID identifies this process. Default: a random UUID.
	LeaderID string

	// LeaderTTL is how long a leader's lease is valid.
	// Default: 30 seconds
	LeaderTTL time.Duration

	// ElectionPeriod is how often to attempt becoming leader when not leader.
	// Default: 10 seconds
	ElectionPeriod time.Duration

	// ReelectionDelay is how long to wait before renewing the lease.
	// Should be less than LeaderTTL.
	// Default: 5 seconds
	ReelectionDelay time.Duration

	// OnError is called when a lease operation fails.
	OnError func(err error)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LeaseName:       DefaultLeaseName,
		LeaderTTL:       DefaultLeaderTTL,
		ElectionPeriod:  DefaultElectionPeriod,
		ReelectionDelay: DefaultReelectionDelay,
	}
}

func (c *Config) applyDefaults() {
	if c.LeaseName == "" {
		c.LeaseName = DefaultLeaseName
	}
	if c.LeaderID == "" {
		c.LeaderID = uuid.NewString()
	}
	if c.LeaderTTL <= 0 {
		c.LeaderTTL = DefaultLeaderTTL
	}
	if c.ElectionPeriod <= 0 {
		c.ElectionPeriod = DefaultElectionPeriod
	}
	if c.ReelectionDelay <= 0 {
		c.ReelectionDelay = DefaultReelectionDelay
	}
}

// Callbacks are called when leadership status changes.
type Callbacks struct {
	// OnBecameLeader is called when this process becomes the leader.
	// It is called with the context that was passed to Start().
	OnBecameLeader func(ctx context.Context)

	// OnLostLeadership is called when this process loses leadership.
	// This can happen due to:
	//   - Failed to renew lease (network issue, DB issue)
	//   - Explicit resignation via Resign()
	//   - Stop()
	OnLostLeadership func(ctx context.Context)
}

// Elector manages leader election for one lease.
type Elector struct {
	store     Store
	config    *Config
	callbacks Callbacks

	// mu protects isLeader
	mu       sync.RWMutex
	isLeader bool

	started atomic.Bool
	done    chan struct{}
	cancel  context.CancelFunc
}

// NewElector creates a new leader elector.
func NewElector(store Store, config *Config, callbacks Callbacks) *Elector {
	if config == nil {
		config = DefaultConfig()
	}
	config.applyDefaults()

	return &Elector{
		store:     store,
		config:    config,
		callbacks: callbacks,
	}
}

// LeaderID returns the ID this elector campaigns with.
func (e *Elector) LeaderID() string {
	return e.config.LeaderID
}

// Start begins the leader election process.
// It returns immediately and runs the election loop in a goroutine.
func (e *Elector) Start(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	go e.runElectionLoop(ctx)

	return nil
}

// Stop stops the leader election process.
// If this process is the leader, it resigns before stopping.
func (e *Elector) Stop(ctx context.Context) error {
	if !e.started.Load() {
		return ErrNotStarted
	}

	e.cancel()
	<-e.done

	if err := e.Resign(ctx); err != nil {
		e.reportError(err)
	}

	e.started.Store(false)
	return nil
}

// IsLeader returns true if this process is currently the leader.
func (e *Elector) IsLeader() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.isLeader
}

// IsRunning returns true if the elector is running.
func (e *Elector) IsRunning() bool {
	return e.started.Load()
}

// Resign voluntarily gives up leadership.
func (e *Elector) Resign(ctx context.Context) error {
	if !e.setLeader(false) {
		return nil
	}

	resignCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := e.store.LeaderResign(resignCtx, e.config.LeaseName, e.config.LeaderID)

	if e.callbacks.OnLostLeadership != nil {
		e.callbacks.OnLostLeadership(ctx)
	}
	return err
}

// setLeader updates the flag and reports whether it changed.
func (e *Elector) setLeader(v bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	changed := e.isLeader != v
	e.isLeader = v
	return changed
}

func (e *Elector) runElectionLoop(ctx context.Context) {
	defer close(e.done)

	// Try to become leader immediately
	e.attemptElection(ctx)

	for {
		delay := e.config.ElectionPeriod
		if e.IsLeader() {
			delay = e.config.ReelectionDelay
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
			if e.IsLeader() {
				e.attemptReelection(ctx)
			} else {
				e.attemptElection(ctx)
			}
		}
	}
}

func (e *Elector) attemptElection(ctx context.Context) {
	elected, err := e.store.LeaderAttemptElect(ctx, e.config.LeaseName, e.config.LeaderID, e.config.LeaderTTL)
	if err != nil {
		// retried on the next tick
		e.reportError(err)
		return
	}

	if elected && e.setLeader(true) && e.callbacks.OnBecameLeader != nil {
		e.callbacks.OnBecameLeader(ctx)
	}
}

func (e *Elector) attemptReelection(ctx context.Context) {
	reelected, err := e.store.LeaderAttemptReelect(ctx, e.config.LeaseName, e.config.LeaderID, e.config.LeaderTTL)
	if err != nil {
		e.reportError(err)
	}
	if err == nil && reelected {
		return
	}

	if e.setLeader(false) && e.callbacks.OnLostLeadership != nil {
		e.callbacks.OnLostLeadership(ctx)
	}
}

func (e *Elector) reportError(err error) {
	if e.config.OnError != nil && err != nil {
		e.config.OnError(err)
	}
}
