package tenant

import (
	"context"

	"github.com/google/uuid"
)

// Binding is the per-request tenant identity. It is created by the
// Resolver at the start of request handling, carried in the request
// context, and never persisted. Once a request is bound, all of its
// data access goes through Binding.Partition.
type Binding struct {
	// Subdomain is the public tenant identifier, lowercase.
	Subdomain string

	// Partition is the tenant's schema name. Always a valid SQL
	// identifier for catalog rows written by provisioning.
	Partition string

	// TenantID is the tenant's stable unique identifier.
	TenantID uuid.UUID
}

type contextKey struct{}

// NewContext returns a context carrying the binding.
func NewContext(ctx context.Context, b Binding) context.Context {
	return context.WithValue(ctx, contextKey{}, b)
}

// FromContext extracts the binding from the context.
// Returns false if the request was never bound to a tenant.
func FromContext(ctx context.Context) (Binding, bool) {
	b, ok := ctx.Value(contextKey{}).(Binding)
	return b, ok
}
