package ticket

import (
	"context"

	"github.com/google/uuid"

	"github.com/nexdesk/nexdesk/tenant"
)

// Store defines the persistence contract for tickets. All operations
// run inside the partition named by the binding; partitions never
// interact.
type Store interface {
	// CreateTicket persists a new open ticket. The store assigns Seq.
	CreateTicket(ctx context.Context, b tenant.Binding, t *Ticket) error

	// PullNext atomically claims the oldest open, unassigned ticket in
	// any of the given queues for agentID and returns it. Rows locked
	// by concurrent in-flight pulls are skipped, never waited on, so a
	// ticket is handed to exactly one caller. Creation-time ties break
	// by Seq.
	//
	// Returns (nil, nil) when no eligible ticket exists; an empty queue
	// is the common case, not a failure.
	PullNext(ctx context.Context, b tenant.Binding, queues []string, agentID string) (*Ticket, error)

	// GetTicket retrieves a ticket by ID.
	GetTicket(ctx context.Context, b tenant.Binding, ticketID uuid.UUID) (*Ticket, error)

	// CloseTicket marks an assigned ticket closed. Ordinary row locking
	// applies: two closes of the same ticket block each other normally.
	CloseTicket(ctx context.Context, b tenant.Binding, ticketID uuid.UUID, agentID string) (*Ticket, error)

	// CountOpenTickets returns the number of open tickets per queue.
	CountOpenTickets(ctx context.Context, b tenant.Binding) (map[string]int64, error)
}
