// Package driver provides database driver abstractions for message storage.
//
// It defines the interfaces that database drivers implement so the same
// storage code runs on pgx/v5 and on database/sql with lib/pq.
package driver

import (
	"context"

	"github.com/youssefsiam38/tagstream/storage"
)

// Driver provides database operations.
// TTx is the native transaction type (e.g., pgx.Tx for pgx/v5, *sql.Tx for database/sql).
//
// Implementations should be created using the driver-specific New() functions:
//   - github.com/youssefsiam38/tagstream/driver/pgxv5.New(pool)
//   - github.com/youssefsiam38/tagstream/driver/databasesql.New(db, connStr)
type Driver[TTx any] interface {
	// GetExecutor returns an executor for non-transactional operations.
	GetExecutor() Executor

	// UnwrapExecutor converts a native transaction to an ExecutorTx.
	// This allows the store to join a caller's transaction.
	UnwrapExecutor(tx TTx) ExecutorTx

	// Begin starts a new transaction and returns an ExecutorTx.
	Begin(ctx context.Context) (ExecutorTx, error)

	// PoolIsSet returns true if the driver has a database pool configured.
	PoolIsSet() bool

	// GetStore returns a Store implementation using this driver.
	GetStore() storage.Store

	// GetNotifier returns a Notifier for sending PostgreSQL notifications.
	GetNotifier() Notifier

	// GetListener returns a Listener for receiving PostgreSQL notifications.
	// The returned Listener must be closed when no longer needed.
	GetListener() Listener
}
