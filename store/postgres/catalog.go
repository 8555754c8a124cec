package postgres

import (
	"context"
	"fmt"

	"github.com/nexdesk/nexdesk"
	"github.com/nexdesk/nexdesk/tenant"
)

// Lookup resolves a lowercase subdomain against the shared catalog.
//
// The catalog is read with a fully qualified name, outside any tenant
// transaction: resolution happens before a partition is bound, and no
// partition is ever touched for a request that fails here.
func (s *Store) Lookup(ctx context.Context, subdomain string) (*tenant.Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT tenant_id, subdomain, schema_name, created_at
		FROM public.tenants
		WHERE subdomain = $1`,
		subdomain,
	)

	var rec tenant.Record
	err := row.Scan(&rec.TenantID, &rec.Subdomain, &rec.Partition, &rec.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nexdesk.ErrTenantNotFound
		}
		if isUndefinedTable(err) {
			// Provisioning never ran: a broken install, not a bad request.
			return nil, nexdesk.ErrCatalogMissing
		}
		return nil, nexdesk.Transient(fmt.Errorf("nexdesk/postgres: lookup tenant: %w", err))
	}
	return &rec, nil
}
