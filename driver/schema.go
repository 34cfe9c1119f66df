package driver

import (
	"context"
	"fmt"
)

// Schema creates the message and leader lease tables. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS tagstream_messages (
	id         UUID PRIMARY KEY,
	session_id TEXT NOT NULL,
	role       TEXT NOT NULL,
	blocks     JSONB NOT NULL DEFAULT '[]',
	text       TEXT NOT NULL DEFAULT '',
	partial    BOOLEAN NOT NULL DEFAULT FALSE,
	usage      JSONB,
	metadata   JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS tagstream_messages_session_idx
	ON tagstream_messages (session_id, created_at);

CREATE TABLE IF NOT EXISTS tagstream_leader (
	name       TEXT PRIMARY KEY,
	leader_id  TEXT NOT NULL,
	elected_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);
`

// Migrate applies Schema
func Migrate(ctx context.Context, exec Executor) error {
	if _, err := exec.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
