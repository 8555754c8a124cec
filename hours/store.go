package hours

import (
	"context"

	"github.com/nexdesk/nexdesk/tenant"
)

// Store loads queue schedules from a tenant's partition.
type Store interface {
	// GetSchedule returns the queue's config, weekly rules, and
	// holidays. Returns nexdesk.ErrQueueNotFound when the queue has no
	// configuration row.
	GetSchedule(ctx context.Context, b tenant.Binding, queue string) (*Schedule, error)
}
