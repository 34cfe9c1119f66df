package databasesql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/youssefsiam38/tagstream/driver"
	"github.com/youssefsiam38/tagstream/storage"
)

// Store implements storage.Store using the databasesql driver.
type Store struct {
	driver *Driver
}

// NewStore creates a new databasesql Store.
func NewStore(d *Driver) *Store {
	return &Store{driver: d}
}

// getExecutor returns the executor from context if present, otherwise the default pool executor.
func (s *Store) getExecutor(ctx context.Context) driver.Executor {
	if exec := driver.ExecutorFromContext(ctx); exec != nil {
		return exec
	}
	return s.driver.GetExecutor()
}

// SaveMessage upserts msg and notifies ChannelMessageSaved on commit.
func (s *Store) SaveMessage(ctx context.Context, msg *storage.Message) error {
	enc, err := driver.EncodeMessage(msg, time.Now())
	if err != nil {
		return err
	}

	tx, err := s.getExecutor(ctx).Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var createdAt time.Time
	if err := tx.QueryRow(ctx, driver.UpsertMessageSQL, enc.Args()...).Scan(&createdAt); err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	msg.CreatedAt = createdAt

	p := driver.MessageSavedJSON(driver.MessageSavedPayload{MessageID: msg.ID, SessionID: msg.SessionID, Partial: msg.Partial})
	if _, err := tx.Exec(ctx, "SELECT pg_notify($1, $2)", driver.ChannelMessageSaved, p); err != nil {
		return fmt.Errorf("failed to notify: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit message: %w", err)
	}
	return nil
}

// GetMessage retrieves a message by ID.
func (s *Store) GetMessage(ctx context.Context, id string) (*storage.Message, error) {
	msg, err := driver.ScanMessage(s.getExecutor(ctx).QueryRow(ctx, driver.GetMessageSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return msg, nil
}

// GetMessages retrieves the messages of a session, oldest first.
func (s *Store) GetMessages(ctx context.Context, sessionID string) ([]*storage.Message, error) {
	rows, err := s.getExecutor(ctx).Query(ctx, driver.GetMessagesSQL, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []*storage.Message
	for rows.Next() {
		msg, err := driver.ScanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// DeleteMessages deletes messages by ID.
func (s *Store) DeleteMessages(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	// Use pq.Array for PostgreSQL array parameter
	if _, err := s.getExecutor(ctx).Exec(ctx, driver.DeleteMessagesSQL, pq.Array(ids)); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	return nil
}

// PruneMessages deletes messages created before the given time.
func (s *Store) PruneMessages(ctx context.Context, before time.Time, partialOnly bool) (int, error) {
	n, err := s.getExecutor(ctx).Exec(ctx, driver.PruneMessagesSQL, before, partialOnly)
	if err != nil {
		return 0, fmt.Errorf("failed to prune messages: %w", err)
	}
	return int(n), nil
}

// LeaderAttemptElect takes the named lease if it is free or expired.
func (s *Store) LeaderAttemptElect(ctx context.Context, name, leaderID string, ttl time.Duration) (bool, error) {
	return driver.LeaderAttemptElect(ctx, s.getExecutor(ctx), name, leaderID, ttl)
}

// LeaderAttemptReelect renews the named lease.
func (s *Store) LeaderAttemptReelect(ctx context.Context, name, leaderID string, ttl time.Duration) (bool, error) {
	return driver.LeaderAttemptReelect(ctx, s.getExecutor(ctx), name, leaderID, ttl)
}

// LeaderResign releases the named lease.
func (s *Store) LeaderResign(ctx context.Context, name, leaderID string) error {
	return driver.LeaderResign(ctx, s.getExecutor(ctx), name, leaderID)
}

var (
	_ storage.Store  = (*Store)(nil)
	_ storage.Pruner = (*Store)(nil)
)
