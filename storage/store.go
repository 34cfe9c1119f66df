// Package storage persists parsed assistant messages.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/youssefsiam38/tagstream/content"
)

// ErrMessageNotFound is returned when a message ID is unknown
var ErrMessageNotFound = errors.New("message not found")

// Store defines the persistence interface for parsed messages
type Store interface {
	// SaveMessage inserts the message or replaces the stored copy with the same ID
	SaveMessage(ctx context.Context, msg *Message) error

	// GetMessage returns the message with the given ID or ErrMessageNotFound
	GetMessage(ctx context.Context, id string) (*Message, error)

	// GetMessages returns the messages of a session, oldest first
	GetMessages(ctx context.Context, sessionID string) ([]*Message, error)

	// DeleteMessages deletes messages by ID. Unknown IDs are ignored.
	DeleteMessages(ctx context.Context, ids []string) error
}

// Pruner is implemented by stores that can delete messages by age
type Pruner interface {
	// PruneMessages deletes messages created before the given time, only
	// partial ones when partialOnly is set, and returns how many were deleted.
	PruneMessages(ctx context.Context, before time.Time, partialOnly bool) (int, error)
}

// MessageUsage represents token usage for a message
// This is provider-agnostic and can store usage data from any LLM
type MessageUsage struct {
	InputTokens         int `json:"input_tokens"`
	OutputTokens        int `json:"output_tokens"`
	CacheCreationTokens int `json:"cache_creation_tokens,omitempty"`
	CacheReadTokens     int `json:"cache_read_tokens,omitempty"`
}

// TotalTokens returns the sum of input and output tokens
func (u *MessageUsage) TotalTokens() int {
	if u == nil {
		return 0
	}
	return u.InputTokens + u.OutputTokens
}

// Message is a stored, finalized assistant message
type Message struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	Role      string          `json:"role"`
	Blocks    []content.Block `json:"-"`
	// Text is the raw message the blocks were parsed from
	Text string `json:"text"`
	// Partial is set when the stream ended inside a tool call
	Partial   bool           `json:"partial"`
	Usage     *MessageUsage  `json:"usage,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// MarshalJSON encodes the message with its blocks in tagged form
func (m *Message) MarshalJSON() ([]byte, error) {
	blocks, err := content.MarshalBlocks(m.Blocks)
	if err != nil {
		return nil, err
	}
	type plain Message
	return json.Marshal(struct {
		*plain
		Blocks json.RawMessage `json:"blocks"`
	}{(*plain)(m), blocks})
}

// UnmarshalJSON decodes a message encoded by MarshalJSON
func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	aux := struct {
		*plain
		Blocks json.RawMessage `json:"blocks"`
	}{plain: (*plain)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.Blocks) == 0 || string(aux.Blocks) == "null" {
		m.Blocks = nil
		return nil
	}
	blocks, err := content.UnmarshalBlocks(aux.Blocks)
	if err != nil {
		return fmt.Errorf("decode blocks: %w", err)
	}
	m.Blocks = blocks
	return nil
}

// Clone returns a deep copy of the message
func (m *Message) Clone() *Message {
	c := *m
	c.Blocks = content.CloneBlocks(m.Blocks)
	if m.Usage != nil {
		u := *m.Usage
		c.Usage = &u
	}
	if m.Metadata != nil {
		c.Metadata = make(map[string]any, len(m.Metadata))
		for k, v := range m.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
