package ticket

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a ticket.
type Status string

const (
	// StatusOpen means the ticket is awaiting or under agent attention.
	StatusOpen Status = "open"
	// StatusClosed means the ticket is resolved.
	StatusClosed Status = "closed"
)

// Ticket is one support request inside a tenant's partition.
//
// A ticket has at most one assignee at a time, and assignment is atomic
// with respect to all concurrent dispatch attempts for the same ticket:
// the dispatcher sets Assignee inside the same locked statement that
// selects the row.
type Ticket struct {
	// ID is the ticket's unique identifier.
	ID uuid.UUID `json:"id"`

	// Seq is the partition-local insertion sequence number. It breaks
	// creation-time ties so dispatch order is deterministic.
	Seq int64 `json:"seq"`

	// Queue is the name of the queue the ticket waits in.
	Queue string `json:"queue"`

	// Subject is the customer-facing summary line.
	Subject string `json:"subject"`

	// Assignee is the agent the ticket is assigned to. Empty while the
	// ticket is unassigned.
	Assignee string `json:"assignee,omitempty"`

	// Status is the lifecycle state.
	Status Status `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Assigned reports whether the ticket currently has an assignee.
func (t *Ticket) Assigned() bool { return t.Assignee != "" }
