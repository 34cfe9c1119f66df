// Package databasesql provides a database/sql driver implementation for
// tagstream on top of lib/pq.
//
// Usage:
//
//	db, _ := sql.Open("postgres", connStr)
//	drv := databasesql.New(db, connStr)
//	client, _ := tagstream.NewClient(tagstream.Config{Store: drv.GetStore()})
package databasesql

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"

	"github.com/youssefsiam38/tagstream/driver"
	"github.com/youssefsiam38/tagstream/storage"
)

// Driver implements driver.Driver using database/sql.
type Driver struct {
	db      *sql.DB
	connStr string
}

// New creates a new database/sql driver using the provided connection.
// The connStr is required for creating listener connections.
func New(db *sql.DB, connStr string) *Driver {
	return &Driver{db: db, connStr: connStr}
}

// GetExecutor returns an executor for non-transactional operations.
func (d *Driver) GetExecutor() driver.Executor {
	return &Executor{db: d.db}
}

// UnwrapExecutor converts a *sql.Tx to an ExecutorTx.
func (d *Driver) UnwrapExecutor(tx *sql.Tx) driver.ExecutorTx {
	return &ExecutorTx{tx: tx, depth: new(atomic.Int64)}
}

// UnwrapTx extracts the *sql.Tx from an ExecutorTx.
func (d *Driver) UnwrapTx(execTx driver.ExecutorTx) *sql.Tx {
	return execTx.(*ExecutorTx).tx
}

// Begin starts a new transaction and returns an ExecutorTx.
func (d *Driver) Begin(ctx context.Context) (driver.ExecutorTx, error) {
	return d.GetExecutor().Begin(ctx)
}

// PoolIsSet returns true if the driver has a database configured.
func (d *Driver) PoolIsSet() bool {
	return d.db != nil
}

// GetStore returns a Store implementation using this driver.
func (d *Driver) GetStore() storage.Store {
	return NewStore(d)
}

// GetNotifier returns a Notifier for sending PostgreSQL notifications.
func (d *Driver) GetNotifier() driver.Notifier {
	return &Notifier{db: d.db}
}

// GetListener returns a lib/pq backed Listener on its own connection.
func (d *Driver) GetListener() driver.Listener {
	return NewListener(d.connStr)
}

// Migrate creates the message table if it does not exist.
func (d *Driver) Migrate(ctx context.Context) error {
	return driver.Migrate(ctx, d.GetExecutor())
}

// DB returns the underlying database connection.
func (d *Driver) DB() *sql.DB {
	return d.db
}

// querier is the subset of *sql.DB and *sql.Tx the executors need
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func exec(ctx context.Context, q querier, query string, args ...any) (int64, error) {
	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func query(ctx context.Context, q querier, query string, args ...any) (driver.Rows, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return &rowsWrapper{rows}, nil
}

// Executor wraps *sql.DB for non-transactional operations.
type Executor struct {
	db *sql.DB
}

// Begin starts a new transaction.
func (e *Executor) Begin(ctx context.Context) (driver.ExecutorTx, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &ExecutorTx{tx: tx, depth: new(atomic.Int64)}, nil
}

// Exec executes a query that doesn't return rows.
func (e *Executor) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	return exec(ctx, e.db, sql, args...)
}

// Query executes a query that returns rows.
func (e *Executor) Query(ctx context.Context, sql string, args ...any) (driver.Rows, error) {
	return query(ctx, e.db, sql, args...)
}

// QueryRow executes a query that returns at most one row.
func (e *Executor) QueryRow(ctx context.Context, sql string, args ...any) driver.Row {
	return e.db.QueryRowContext(ctx, sql, args...)
}

// ExecutorTx wraps *sql.Tx. Nested Begin calls create savepoints.
type ExecutorTx struct {
	tx *sql.Tx
	// savepoint is empty for the outermost transaction
	savepoint string
	depth     *atomic.Int64
	done      bool
}

// Begin starts a nested transaction (savepoint).
func (e *ExecutorTx) Begin(ctx context.Context) (driver.ExecutorTx, error) {
	name := fmt.Sprintf("tagstream_sp_%d", e.depth.Add(1))
	if _, err := e.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return nil, err
	}
	return &ExecutorTx{tx: e.tx, savepoint: name, depth: e.depth}, nil
}

// Exec executes a query that doesn't return rows within the transaction.
func (e *ExecutorTx) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	return exec(ctx, e.tx, sql, args...)
}

// Query executes a query that returns rows within the transaction.
func (e *ExecutorTx) Query(ctx context.Context, sql string, args ...any) (driver.Rows, error) {
	return query(ctx, e.tx, sql, args...)
}

// QueryRow executes a query that returns at most one row within the transaction.
func (e *ExecutorTx) QueryRow(ctx context.Context, sql string, args ...any) driver.Row {
	return e.tx.QueryRowContext(ctx, sql, args...)
}

// Commit commits the transaction or releases the savepoint.
func (e *ExecutorTx) Commit(ctx context.Context) error {
	if e.done {
		return sql.ErrTxDone
	}
	e.done = true
	if e.savepoint != "" {
		_, err := e.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+e.savepoint)
		return err
	}
	return e.tx.Commit()
}

// Rollback rolls back the transaction or to the savepoint. Calling it after
// Commit is a no-op that returns sql.ErrTxDone.
func (e *ExecutorTx) Rollback(ctx context.Context) error {
	if e.done {
		return sql.ErrTxDone
	}
	e.done = true
	if e.savepoint != "" {
		_, err := e.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+e.savepoint)
		return err
	}
	return e.tx.Rollback()
}

// rowsWrapper adapts *sql.Rows to driver.Rows.
type rowsWrapper struct {
	*sql.Rows
}

func (r *rowsWrapper) Close() { _ = r.Rows.Close() }

var _ driver.Driver[*sql.Tx] = (*Driver)(nil)
