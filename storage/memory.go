package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store. Messages are copied on the way in and
// out, so callers never share state with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	messages map[string]*Message
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{messages: make(map[string]*Message)}
}

// SaveMessage implements Store. An empty ID is replaced with a new UUID.
func (s *MemoryStore) SaveMessage(ctx context.Context, msg *Message) error {
	if msg == nil {
		return fmt.Errorf("message cannot be nil")
	}
	if msg.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}

	now := time.Now()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	msg.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.messages[msg.ID]; ok {
		msg.CreatedAt = prev.CreatedAt
	}
	s.messages[msg.ID] = msg.Clone()
	return nil
}

// GetMessage implements Store
func (s *MemoryStore) GetMessage(ctx context.Context, id string) (*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.messages[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMessageNotFound, id)
	}
	return msg.Clone(), nil
}

// GetMessages implements Store
func (s *MemoryStore) GetMessages(ctx context.Context, sessionID string) ([]*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Message
	for _, msg := range s.messages {
		if msg.SessionID == sessionID {
			out = append(out, msg.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// DeleteMessages implements Store
func (s *MemoryStore) DeleteMessages(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.messages, id)
	}
	return nil
}

// PruneMessages implements Pruner
func (s *MemoryStore) PruneMessages(ctx context.Context, before time.Time, partialOnly bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, msg := range s.messages {
		if msg.CreatedAt.Before(before) && (msg.Partial || !partialOnly) {
			delete(s.messages, id)
			n++
		}
	}
	return n, nil
}

// Compile-time checks
var (
	_ Store  = (*MemoryStore)(nil)
	_ Pruner = (*MemoryStore)(nil)
)
