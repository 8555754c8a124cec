// Package postgres is the production store backend, built on pgx/v5.
//
// Tenant isolation maps to PostgreSQL schemas: the shared catalog
// lives in public, every tenant's tables live in the tenant's own
// schema, and each unit of work runs in a transaction whose local
// search path is pinned to "<partition>, public". Ticket dispatch uses
// FOR UPDATE SKIP LOCKED so concurrent pulls never queue up behind one
// another on a contested row.
package postgres
