package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nexdesk/nexdesk"
	"github.com/nexdesk/nexdesk/store"
	"github.com/nexdesk/nexdesk/tenant"
	"github.com/nexdesk/nexdesk/ticket"
)

const ticketColumns = `id, seq, queue, subject, assignee, status, created_at, updated_at`

// scanTicket scans one ticket row; assignee is nullable.
func scanTicket(row pgx.Row) (*ticket.Ticket, error) {
	var t ticket.Ticket
	var assignee *string
	err := row.Scan(&t.ID, &t.Seq, &t.Queue, &t.Subject, &assignee, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if assignee != nil {
		t.Assignee = *assignee
	}
	return &t, nil
}

// CreateTicket persists a new open ticket in the tenant's partition.
// The partition assigns Seq through the table's identity column.
func (s *Store) CreateTicket(ctx context.Context, b tenant.Binding, t *ticket.Ticket) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	t.Status = ticket.StatusOpen

	err := s.WithTenant(ctx, b.Partition, func(ctx context.Context, q store.Querier) error {
		row := q.QueryRow(ctx, `
			INSERT INTO tickets (id, queue, subject, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $5)
			RETURNING seq, updated_at`,
			t.ID, t.Queue, t.Subject, t.Status, t.CreatedAt,
		)
		if err := row.Scan(&t.Seq, &t.UpdatedAt); err != nil {
			if isDuplicateKey(err) {
				return fmt.Errorf("nexdesk/postgres: ticket %s already exists: %w", t.ID, err)
			}
			return fmt.Errorf("nexdesk/postgres: create ticket: %w", err)
		}
		return nil
	})
	return nexdesk.Transient(err)
}

// PullNext atomically claims the oldest open, unassigned ticket in any
// of the given queues for agentID.
//
// The inner select takes a row lock and skips rows already locked by
// other in-flight pulls, so concurrent dispatch attempts neither
// serialize on a contested row nor hand the same ticket out twice. The
// assignee is set in the same statement that locks the row: there is
// no window where a second transaction could observe the row unlocked
// but unassigned. If the transaction aborts for any reason, the rolled
// back ticket returns to the pool unassigned.
func (s *Store) PullNext(ctx context.Context, b tenant.Binding, queues []string, agentID string) (*ticket.Ticket, error) {
	if len(queues) == 0 {
		return nil, nil
	}

	var claimed *ticket.Ticket
	err := s.WithTenant(ctx, b.Partition, func(ctx context.Context, q store.Querier) error {
		row := q.QueryRow(ctx, `
			UPDATE tickets
			SET assignee = $2, updated_at = NOW()
			WHERE id = (
				SELECT id FROM tickets
				WHERE status = 'open'
				  AND assignee IS NULL
				  AND queue = ANY($1)
				ORDER BY created_at ASC, seq ASC
				FOR UPDATE SKIP LOCKED
				LIMIT 1
			)
			RETURNING `+ticketColumns,
			queues, agentID,
		)

		t, err := scanTicket(row)
		if err != nil {
			if isNoRows(err) {
				// Nothing eligible: the frequent, normal outcome.
				return nil
			}
			return fmt.Errorf("nexdesk/postgres: pull next ticket: %w", err)
		}
		claimed = t
		return nil
	})
	if err != nil {
		return nil, nexdesk.Transient(err)
	}
	return claimed, nil
}

// GetTicket retrieves a ticket by ID from the tenant's partition.
func (s *Store) GetTicket(ctx context.Context, b tenant.Binding, ticketID uuid.UUID) (*ticket.Ticket, error) {
	var found *ticket.Ticket
	err := s.WithTenant(ctx, b.Partition, func(ctx context.Context, q store.Querier) error {
		row := q.QueryRow(ctx, `
			SELECT `+ticketColumns+` FROM tickets WHERE id = $1`,
			ticketID,
		)
		t, err := scanTicket(row)
		if err != nil {
			if isNoRows(err) {
				return nexdesk.ErrTicketNotFound
			}
			return fmt.Errorf("nexdesk/postgres: get ticket: %w", err)
		}
		found = t
		return nil
	})
	if err != nil {
		return nil, nexdesk.Transient(err)
	}
	return found, nil
}

// CloseTicket marks the ticket closed on behalf of its assignee.
//
// The row is locked with a plain FOR UPDATE: unlike dispatch, closes
// for the same ticket are mutually interested in the same row and
// block each other normally.
func (s *Store) CloseTicket(ctx context.Context, b tenant.Binding, ticketID uuid.UUID, agentID string) (*ticket.Ticket, error) {
	var closed *ticket.Ticket
	err := s.WithTenant(ctx, b.Partition, func(ctx context.Context, q store.Querier) error {
		row := q.QueryRow(ctx, `
			SELECT `+ticketColumns+` FROM tickets WHERE id = $1 FOR UPDATE`,
			ticketID,
		)
		t, err := scanTicket(row)
		if err != nil {
			if isNoRows(err) {
				return nexdesk.ErrTicketNotFound
			}
			return fmt.Errorf("nexdesk/postgres: lock ticket: %w", err)
		}
		if t.Assignee != agentID {
			return fmt.Errorf("nexdesk/postgres: close ticket %s as %q: %w", ticketID, agentID, nexdesk.ErrWrongAssignee)
		}

		row = q.QueryRow(ctx, `
			UPDATE tickets
			SET status = 'closed', updated_at = NOW()
			WHERE id = $1
			RETURNING `+ticketColumns,
			ticketID,
		)
		t, err = scanTicket(row)
		if err != nil {
			return fmt.Errorf("nexdesk/postgres: close ticket: %w", err)
		}
		closed = t
		return nil
	})
	if err != nil {
		return nil, nexdesk.Transient(err)
	}
	return closed, nil
}

// CountOpenTickets returns the number of open tickets per queue in the
// tenant's partition.
func (s *Store) CountOpenTickets(ctx context.Context, b tenant.Binding) (map[string]int64, error) {
	counts := make(map[string]int64)
	err := s.Query(ctx, b.Partition, `
		SELECT queue, COUNT(*) FROM tickets
		WHERE status = 'open'
		GROUP BY queue`, nil,
		func(rows pgx.Rows) error {
			for rows.Next() {
				var queue string
				var n int64
				if err := rows.Scan(&queue, &n); err != nil {
					return fmt.Errorf("nexdesk/postgres: count open tickets: %w", err)
				}
				counts[queue] = n
			}
			return nil
		})
	if err != nil {
		return nil, nexdesk.Transient(err)
	}
	return counts, nil
}
