// Package store defines the aggregate persistence interface. Each
// subsystem (tenant, ticket, hours) defines its own store interface;
// the composite Store composes them all. Backends: Postgres (the
// production store) and Memory (tests and local development).
package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nexdesk/nexdesk/hours"
	"github.com/nexdesk/nexdesk/tenant"
	"github.com/nexdesk/nexdesk/ticket"
)

// Store is the aggregate persistence interface. A single backend
// implements all subsystem contracts.
type Store interface {
	tenant.Catalog
	ticket.Store
	hours.Store

	// Migrate runs all shared-schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}

// Querier is the restricted statement handle a unit of work receives.
// It deliberately omits transaction control: a unit of work issues
// statements against the one transaction it was given and cannot open
// another. pgx.Tx satisfies Querier.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UnitOfWork is the caller's work executed inside one partition-bound
// transaction.
type UnitOfWork func(ctx context.Context, q Querier) error

// Runner executes units of work bound to a tenant partition.
//
// WithTenant acquires a pooled connection, begins a transaction, pins
// the transaction-local search path to "<partition>, public", and runs
// fn. A nil return commits; any error (or panic, or context
// cancellation) rolls back. The connection is released on every exit
// path. The partition is validated as a safe identifier first; it is a
// search-path directive and cannot travel as a bound parameter.
//
// The partition is an explicit argument on every call. It is never
// session state: a reused connection carries nothing over from prior
// units of work.
type Runner interface {
	WithTenant(ctx context.Context, partition string, fn UnitOfWork) error
}
