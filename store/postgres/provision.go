package postgres

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"

	"embed"

	"github.com/jackc/pgx/v5"

	"github.com/nexdesk/nexdesk"
	"github.com/nexdesk/nexdesk/store"
	"github.com/nexdesk/nexdesk/tenant"
)

//go:embed partition/*.sql
var partitionFS embed.FS

// Provision registers a tenant in the shared catalog and creates its
// partition with the per-tenant table set.
//
// This is the one operation that writes a shared catalog, and it is
// explicitly scoped: the insert names public.tenants outright instead
// of relying on search-path fallback. Tenant-scoped business logic
// never writes shared state.
func (s *Store) Provision(ctx context.Context, rec tenant.Record) error {
	if !ValidPartition(rec.Partition) {
		return fmt.Errorf("nexdesk/postgres: partition %q: %w", rec.Partition, nexdesk.ErrInvalidPartition)
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO public.tenants (tenant_id, subdomain, schema_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (subdomain) DO NOTHING`,
		rec.TenantID, rec.Subdomain, rec.Partition,
	)
	if err != nil {
		if isUndefinedTable(err) {
			return nexdesk.ErrCatalogMissing
		}
		return nexdesk.Transient(fmt.Errorf("nexdesk/postgres: register tenant: %w", err))
	}

	// CREATE SCHEMA cannot run via the runner: the runner's search
	// path presumes the schema already exists.
	createSchema := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pgx.Identifier{rec.Partition}.Sanitize())
	if _, err := s.pool.Exec(ctx, createSchema); err != nil {
		return nexdesk.Transient(fmt.Errorf("nexdesk/postgres: create schema %q: %w", rec.Partition, err))
	}

	entries, err := fs.ReadDir(partitionFS, "partition")
	if err != nil {
		return fmt.Errorf("nexdesk/postgres: read partition ddl: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	// Unqualified DDL resolves into the new schema through the
	// runner's pinned search path.
	err = s.WithTenant(ctx, rec.Partition, func(ctx context.Context, q store.Querier) error {
		for _, name := range names {
			ddl, err := partitionFS.ReadFile("partition/" + name)
			if err != nil {
				return fmt.Errorf("nexdesk/postgres: read partition ddl %s: %w", name, err)
			}
			if _, err := q.Exec(ctx, string(ddl)); err != nil {
				return fmt.Errorf("nexdesk/postgres: apply partition ddl %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nexdesk.Transient(err)
	}

	s.logger.Info("tenant provisioned",
		slog.String("subdomain", rec.Subdomain),
		slog.String("partition", rec.Partition),
	)
	return nil
}
