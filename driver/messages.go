package driver

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/youssefsiam38/tagstream/content"
	"github.com/youssefsiam38/tagstream/storage"
)

// SQL shared by the drivers. Array parameters differ per driver, so
// DeleteMessagesSQL takes a single text[] argument built by the caller.
const (
	UpsertMessageSQL = `
		INSERT INTO tagstream_messages (id, session_id, role, blocks, text, partial, usage, metadata, created_at, updated_at)
		VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			role = EXCLUDED.role,
			blocks = EXCLUDED.blocks,
			text = EXCLUDED.text,
			partial = EXCLUDED.partial,
			usage = EXCLUDED.usage,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at
	`

	selectMessageColumns = `SELECT id::text, session_id, role, blocks, text, partial, usage, metadata, created_at, updated_at FROM tagstream_messages`

	GetMessageSQL = selectMessageColumns + ` WHERE id = $1::uuid`

	GetMessagesSQL = selectMessageColumns + ` WHERE session_id = $1 ORDER BY created_at, id`

	DeleteMessagesSQL = `DELETE FROM tagstream_messages WHERE id::text = ANY($1)`

	PruneMessagesSQL = `DELETE FROM tagstream_messages WHERE created_at < $1 AND (partial OR NOT $2)`
)

// EncodedMessage holds the column values of a message
type EncodedMessage struct {
	ID        string
	SessionID string
	Role      string
	Blocks    []byte
	Text      string
	Partial   bool
	Usage     []byte
	Metadata  []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Args returns the UpsertMessageSQL arguments. JSON columns are passed as
// strings so both drivers send them as text.
func (e *EncodedMessage) Args() []any {
	var usage any
	if e.Usage != nil {
		usage = string(e.Usage)
	}
	return []any{e.ID, e.SessionID, e.Role, string(e.Blocks), e.Text, e.Partial, usage, string(e.Metadata), e.CreatedAt, e.UpdatedAt}
}

// EncodeMessage validates msg, assigns an ID and timestamps when missing and
// encodes its JSON columns. msg is updated in place.
func EncodeMessage(msg *storage.Message, now time.Time) (*EncodedMessage, error) {
	if msg.SessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	} else if _, err := uuid.Parse(msg.ID); err != nil {
		return nil, fmt.Errorf("invalid message id %q: %w", msg.ID, err)
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	msg.UpdatedAt = now

	blocks, err := content.MarshalBlocks(msg.Blocks)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal blocks: %w", err)
	}

	var usage []byte
	if msg.Usage != nil {
		if usage, err = json.Marshal(msg.Usage); err != nil {
			return nil, fmt.Errorf("failed to marshal usage: %w", err)
		}
	}

	metadata := msg.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	return &EncodedMessage{
		ID:        msg.ID,
		SessionID: msg.SessionID,
		Role:      msg.Role,
		Blocks:    blocks,
		Text:      msg.Text,
		Partial:   msg.Partial,
		Usage:     usage,
		Metadata:  metadataJSON,
		CreatedAt: msg.CreatedAt,
		UpdatedAt: msg.UpdatedAt,
	}, nil
}

// ScanMessage reads a row selected by GetMessageSQL or GetMessagesSQL
func ScanMessage(row Row) (*storage.Message, error) {
	var e EncodedMessage
	if err := row.Scan(&e.ID, &e.SessionID, &e.Role, &e.Blocks, &e.Text, &e.Partial, &e.Usage, &e.Metadata, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	return e.Decode()
}

// Decode converts column values back to a message
func (e *EncodedMessage) Decode() (*storage.Message, error) {
	msg := &storage.Message{
		ID:        e.ID,
		SessionID: e.SessionID,
		Role:      e.Role,
		Text:      e.Text,
		Partial:   e.Partial,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}

	blocks, err := content.UnmarshalBlocks(e.Blocks)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal blocks: %w", err)
	}
	msg.Blocks = blocks

	if len(e.Usage) > 0 {
		msg.Usage = &storage.MessageUsage{}
		if err := json.Unmarshal(e.Usage, msg.Usage); err != nil {
			return nil, fmt.Errorf("failed to unmarshal usage: %w", err)
		}
	}
	if len(e.Metadata) > 0 {
		if err := json.Unmarshal(e.Metadata, &msg.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
		if len(msg.Metadata) == 0 {
			msg.Metadata = nil
		}
	}
	return msg, nil
}
