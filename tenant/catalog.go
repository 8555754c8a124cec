package tenant

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Record is one row of the shared tenant catalog: the mapping from a
// public subdomain to the schema holding that tenant's data. Rows are
// written by provisioning and are immutable from the dispatch core's
// point of view.
type Record struct {
	TenantID  uuid.UUID
	Subdomain string
	Partition string
	CreatedAt time.Time
}

// Catalog looks up tenants in the shared catalog table.
//
// Lookup is keyed by lowercase subdomain. Implementations return
// nexdesk.ErrTenantNotFound when no row matches and
// nexdesk.ErrCatalogMissing when the catalog table itself does not
// exist (a broken install, distinct from a bad request).
type Catalog interface {
	Lookup(ctx context.Context, subdomain string) (*Record, error)
}
