package leadership

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type lease struct {
	holder  string
	expires time.Time
}

// memStore is an in-memory lease table.
type memStore struct {
	mu     sync.Mutex
	leases map[string]lease

	electErr   error
	reelectErr atomic.Value // error
	resigned   atomic.Int32
}

func newMemStore() *memStore {
	return &memStore{leases: make(map[string]lease)}
}

func (m *memStore) LeaderAttemptElect(ctx context.Context, name, leaderID string, ttl time.Duration) (bool, error) {
	if m.electErr != nil {
		return false, m.electErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if l, ok := m.leases[name]; ok && now.Before(l.expires) {
		return false, nil
	}
	m.leases[name] = lease{holder: leaderID, expires: now.Add(ttl)}
	return true, nil
}

func (m *memStore) LeaderAttemptReelect(ctx context.Context, name, leaderID string, ttl time.Duration) (bool, error) {
	if err, _ := m.reelectErr.Load().(error); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	l, ok := m.leases[name]
	if !ok || l.holder != leaderID || now.After(l.expires) {
		return false, nil
	}
	m.leases[name] = lease{holder: leaderID, expires: now.Add(ttl)}
	return true, nil
}

func (m *memStore) LeaderResign(ctx context.Context, name, leaderID string) error {
	m.resigned.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.leases[name]; ok && l.holder == leaderID {
		delete(m.leases, name)
	}
	return nil
}

func (m *memStore) holder(name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.leases[name].holder
}

func fastConfig(id string) *Config {
	return &Config{
		LeaderID:        id,
		LeaderTTL:       200 * time.Millisecond,
		ElectionPeriod:  20 * time.Millisecond,
		ReelectionDelay: 20 * time.Millisecond,
	}
}

func waitSignal(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func signalCallbacks() (Callbacks, chan struct{}, chan struct{}) {
	became := make(chan struct{}, 10)
	lost := make(chan struct{}, 10)
	return Callbacks{
		OnBecameLeader:   func(context.Context) { became <- struct{}{} },
		OnLostLeadership: func(context.Context) { lost <- struct{}{} },
	}, became, lost
}

func TestElector_StartStop(t *testing.T) {
	store := newMemStore()
	cb, became, lost := signalCallbacks()
	elector := NewElector(store, fastConfig("instance-1"), cb)
	ctx := context.Background()

	if err := elector.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := elector.Start(ctx); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("Start() error = %v, want %v", err, ErrAlreadyStarted)
	}

	waitSignal(t, became, "election")
	if !elector.IsLeader() || store.holder(DefaultLeaseName) != "instance-1" {
		t.Fatalf("IsLeader = %t, holder = %q", elector.IsLeader(), store.holder(DefaultLeaseName))
	}

	if err := elector.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	waitSignal(t, lost, "resignation")
	if elector.IsLeader() || elector.IsRunning() {
		t.Error("still leader or running after Stop")
	}
	if store.holder(DefaultLeaseName) != "" {
		t.Error("lease not released on Stop")
	}
	if err := elector.Stop(ctx); !errors.Is(err, ErrNotStarted) {
		t.Errorf("second Stop() error = %v", err)
	}
}

func TestElector_OnlyOneLeader(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	cb1, became1, _ := signalCallbacks()
	first := NewElector(store, fastConfig("a"), cb1)
	if err := first.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitSignal(t, became1, "first leader")

	cb2, became2, _ := signalCallbacks()
	second := NewElector(store, fastConfig("b"), cb2)
	if err := second.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() { _ = second.Stop(ctx) }()

	// the first keeps renewing, so the second never wins
	time.Sleep(100 * time.Millisecond)
	if second.IsLeader() {
		t.Fatal("two leaders at once")
	}

	// once the first steps down the second takes over
	if err := first.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	waitSignal(t, became2, "takeover")
	if store.holder(DefaultLeaseName) != "b" {
		t.Errorf("holder = %q, want b", store.holder(DefaultLeaseName))
	}
}

func TestElector_SeparateLeases(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	for _, name := range []string{"cleanup", "reports"} {
		cfg := fastConfig("same-process")
		cfg.LeaseName = name
		cb, became, _ := signalCallbacks()
		e := NewElector(store, cfg, cb)
		if err := e.Start(ctx); err != nil {
			t.Fatalf("Start: %v", err)
		}
		waitSignal(t, became, name)
		defer func() { _ = e.Stop(ctx) }()
	}
}

func TestElector_LosesLeadershipOnRenewFailure(t *testing.T) {
	store := newMemStore()
	var errs atomic.Int32
	cfg := fastConfig("instance-1")
	cfg.OnError = func(error) { errs.Add(1) }
	cb, became, lost := signalCallbacks()
	elector := NewElector(store, cfg, cb)
	ctx := context.Background()

	if err := elector.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() { _ = elector.Stop(ctx) }()
	waitSignal(t, became, "election")

	store.reelectErr.Store(errors.New("connection reset"))
	waitSignal(t, lost, "lost leadership")
	if elector.IsLeader() {
		t.Error("still leader after failed renewal")
	}
	if errs.Load() == 0 {
		t.Error("renewal error not reported")
	}
}

func TestElector_ElectionErrorReported(t *testing.T) {
	store := newMemStore()
	store.electErr = errors.New("database down")
	reported := make(chan struct{}, 10)
	cfg := fastConfig("instance-1")
	cfg.OnError = func(error) { reported <- struct{}{} }

	elector := NewElector(store, cfg, Callbacks{})
	ctx := context.Background()
	if err := elector.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() { _ = elector.Stop(ctx) }()

	waitSignal(t, reported, "election error")
	if elector.IsLeader() {
		t.Error("leader despite failed election")
	}
}

func TestNewElector_Defaults(t *testing.T) {
	e := NewElector(newMemStore(), &Config{}, Callbacks{})
	if e.LeaderID() == "" {
		t.Error("no LeaderID generated")
	}
	if e.config.LeaseName != DefaultLeaseName || e.config.LeaderTTL != DefaultLeaderTTL ||
		e.config.ElectionPeriod != DefaultElectionPeriod || e.config.ReelectionDelay != DefaultReelectionDelay {
		t.Errorf("config = %+v", e.config)
	}
}
