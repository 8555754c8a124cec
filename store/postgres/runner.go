package postgres

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"

	"github.com/nexdesk/nexdesk"
	"github.com/nexdesk/nexdesk/store"
)

// identPattern is the allow-list for partition names. A partition name
// is interpolated into the search-path statement, so it must be a
// plain identifier: it can never travel as a bound parameter.
var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidPartition reports whether name is safe to use as a schema name.
func ValidPartition(name string) bool {
	return len(name) > 0 && len(name) <= 63 && identPattern.MatchString(name)
}

// txKey marks a context that already runs inside a WithTenant
// transaction, so nested top-level transactions are rejected.
type txKey struct{}

// WithTenant implements store.Runner.
//
// It acquires a pooled connection, begins a transaction, pins the
// transaction-local search path to "<partition>, public", and runs fn
// with a handle restricted to that transaction. A nil return commits;
// any error or panic rolls back. The connection is released on every
// exit path, including caller cancellation.
func (s *Store) WithTenant(ctx context.Context, partition string, fn store.UnitOfWork) (err error) {
	if !ValidPartition(partition) {
		return fmt.Errorf("nexdesk/postgres: partition %q: %w", partition, nexdesk.ErrInvalidPartition)
	}
	if ctx.Value(txKey{}) != nil {
		return fmt.Errorf("nexdesk/postgres: partition %q: %w", partition, nexdesk.ErrNestedTransaction)
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nexdesk.Transient(fmt.Errorf("nexdesk/postgres: acquire connection: %w", err))
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nexdesk.Transient(fmt.Errorf("nexdesk/postgres: begin: %w", err))
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
		if err != nil {
			// Roll back even when ctx itself is already cancelled.
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	// SET LOCAL scopes the search path to this transaction only: a
	// reused connection inherits nothing. The partition passed the
	// identifier allow-list above and is quoted here; public stays as
	// the fallback for shared catalogs.
	setPath := fmt.Sprintf("SET LOCAL search_path = %s, public", pgx.Identifier{partition}.Sanitize())
	if _, err = tx.Exec(ctx, setPath); err != nil {
		return nexdesk.Transient(fmt.Errorf("nexdesk/postgres: set search_path for %q: %w", partition, err))
	}

	if err = fn(context.WithValue(ctx, txKey{}, struct{}{}), tx); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return nexdesk.Transient(fmt.Errorf("nexdesk/postgres: commit: %w", err))
	}
	return nil
}

// Query runs a single read-only statement inside a partition-bound
// transaction and hands the rows to collect before the transaction
// ends. Convenience wrapper over WithTenant.
func (s *Store) Query(ctx context.Context, partition, sql string, args []any, collect func(pgx.Rows) error) error {
	return s.WithTenant(ctx, partition, func(ctx context.Context, q store.Querier) error {
		rows, err := q.Query(ctx, sql, args...)
		if err != nil {
			return nexdesk.Transient(fmt.Errorf("nexdesk/postgres: query: %w", err))
		}
		defer rows.Close()
		if err := collect(rows); err != nil {
			return err
		}
		return rows.Err()
	})
}
