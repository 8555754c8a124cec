// Package nexdesk is the multi-tenant dispatch core of a customer-support
// backend. One deployment serves many independent organizations; each
// tenant's data lives in its own PostgreSQL schema and each tenant's
// ticket queues are dispatched independently.
//
// The core has four subsystems:
//
//   - tenant: binds an inbound request to exactly one tenant, trying
//     header, query parameter, path prefix, then host subdomain, and
//     consulting the shared tenant catalog.
//   - store: executes database work inside a transaction whose search
//     path is pinned to the tenant's schema, falling back to public for
//     shared catalogs. The postgres backend is the production store;
//     the memory backend serves tests and local development.
//   - dispatcher: hands pending tickets to competing agents exactly
//     once, using FOR UPDATE SKIP LOCKED so concurrent pulls for the
//     same queues never serialize on a contested row.
//   - hours: a pure business-hours evaluator (weekly windows plus
//     holiday overrides) that gates which queues may dispatch at a
//     given instant.
//
// The root package holds shared configuration and the error taxonomy.
// Wiring lives in the server package; the nexdeskd command is the
// runnable binary.
package nexdesk
