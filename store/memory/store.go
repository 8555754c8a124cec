// Package memory is a fully in-memory store backend. Safe for
// concurrent access. Intended for unit testing and local development;
// it honors the same ordering and exactly-once dispatch semantics as
// the postgres backend, with a mutex standing in for row locks.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nexdesk/nexdesk"
	"github.com/nexdesk/nexdesk/hours"
	"github.com/nexdesk/nexdesk/store"
	"github.com/nexdesk/nexdesk/tenant"
	"github.com/nexdesk/nexdesk/ticket"
)

// Ensure Store implements the composite interface at compile time.
var _ store.Store = (*Store)(nil)

// partition holds one tenant's data.
type partition struct {
	seq       int64
	tickets   map[uuid.UUID]*ticket.Ticket
	schedules map[string]*hours.Schedule
}

// Store is the in-memory store.
type Store struct {
	mu         sync.RWMutex
	tenants    map[string]*tenant.Record // keyed by subdomain
	partitions map[string]*partition     // keyed by schema name
	provisioned bool
}

// New returns a new empty Store. The catalog reports ErrCatalogMissing
// until the first tenant is provisioned, mirroring a database where
// migrations never ran.
func New() *Store {
	return &Store{
		tenants:    make(map[string]*tenant.Record),
		partitions: make(map[string]*partition),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Migrate marks the catalog as present.
func (m *Store) Migrate(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.provisioned = true
	return nil
}

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// Provision registers a tenant and creates its partition.
func (m *Store) Provision(_ context.Context, rec tenant.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.provisioned = true
	cp := rec
	m.tenants[rec.Subdomain] = &cp
	if _, ok := m.partitions[rec.Partition]; !ok {
		m.partitions[rec.Partition] = &partition{
			tickets:   make(map[uuid.UUID]*ticket.Ticket),
			schedules: make(map[string]*hours.Schedule),
		}
	}
	return nil
}

// lockedPartition returns the partition for a binding. Callers hold m.mu.
func (m *Store) lockedPartition(b tenant.Binding) (*partition, error) {
	p, ok := m.partitions[b.Partition]
	if !ok {
		return nil, nexdesk.Transient(fmt.Errorf("memory: unknown partition %q", b.Partition))
	}
	return p, nil
}

// ──────────────────────────────────────────────────
// Tenant catalog
// ──────────────────────────────────────────────────

// Lookup resolves a lowercase subdomain against the catalog.
func (m *Store) Lookup(_ context.Context, subdomain string) (*tenant.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.provisioned {
		return nil, nexdesk.ErrCatalogMissing
	}
	rec, ok := m.tenants[subdomain]
	if !ok {
		return nil, nexdesk.ErrTenantNotFound
	}
	cp := *rec
	return &cp, nil
}

// ──────────────────────────────────────────────────
// Tickets
// ──────────────────────────────────────────────────

// CreateTicket persists a new open ticket and assigns its Seq.
func (m *Store) CreateTicket(_ context.Context, b tenant.Binding, t *ticket.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.lockedPartition(b)
	if err != nil {
		return err
	}

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	p.seq++
	t.Seq = p.seq
	t.Status = ticket.StatusOpen
	t.UpdatedAt = t.CreatedAt

	cp := *t
	p.tickets[t.ID] = &cp
	return nil
}

// PullNext claims the oldest open, unassigned ticket in the given
// queues. The store lock makes the select-and-assign atomic, which is
// what FOR UPDATE SKIP LOCKED provides in the postgres backend.
func (m *Store) PullNext(_ context.Context, b tenant.Binding, queues []string, agentID string) (*ticket.Ticket, error) {
	if len(queues) == 0 {
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.lockedPartition(b)
	if err != nil {
		return nil, err
	}

	queueSet := make(map[string]struct{}, len(queues))
	for _, q := range queues {
		queueSet[q] = struct{}{}
	}

	var oldest *ticket.Ticket
	for _, t := range p.tickets {
		if t.Status != ticket.StatusOpen || t.Assigned() {
			continue
		}
		if _, ok := queueSet[t.Queue]; !ok {
			continue
		}
		if oldest == nil || t.CreatedAt.Before(oldest.CreatedAt) ||
			(t.CreatedAt.Equal(oldest.CreatedAt) && t.Seq < oldest.Seq) {
			oldest = t
		}
	}
	if oldest == nil {
		return nil, nil
	}

	oldest.Assignee = agentID
	oldest.UpdatedAt = time.Now().UTC()
	cp := *oldest
	return &cp, nil
}

// GetTicket retrieves a ticket by ID.
func (m *Store) GetTicket(_ context.Context, b tenant.Binding, ticketID uuid.UUID) (*ticket.Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, err := m.lockedPartition(b)
	if err != nil {
		return nil, err
	}
	t, ok := p.tickets[ticketID]
	if !ok {
		return nil, nexdesk.ErrTicketNotFound
	}
	cp := *t
	return &cp, nil
}

// CloseTicket marks an assigned ticket closed on behalf of its assignee.
func (m *Store) CloseTicket(_ context.Context, b tenant.Binding, ticketID uuid.UUID, agentID string) (*ticket.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.lockedPartition(b)
	if err != nil {
		return nil, err
	}
	t, ok := p.tickets[ticketID]
	if !ok {
		return nil, nexdesk.ErrTicketNotFound
	}
	if t.Assignee != agentID {
		return nil, fmt.Errorf("memory: close ticket %s as %q: %w", ticketID, agentID, nexdesk.ErrWrongAssignee)
	}

	t.Status = ticket.StatusClosed
	t.UpdatedAt = time.Now().UTC()
	cp := *t
	return &cp, nil
}

// CountOpenTickets returns the number of open tickets per queue.
func (m *Store) CountOpenTickets(_ context.Context, b tenant.Binding) (map[string]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, err := m.lockedPartition(b)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64)
	for _, t := range p.tickets {
		if t.Status == ticket.StatusOpen {
			counts[t.Queue]++
		}
	}
	return counts, nil
}

// ──────────────────────────────────────────────────
// Schedules
// ──────────────────────────────────────────────────

// GetSchedule returns the queue's schedule.
func (m *Store) GetSchedule(_ context.Context, b tenant.Binding, queue string) (*hours.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, err := m.lockedPartition(b)
	if err != nil {
		return nil, err
	}
	sched, ok := p.schedules[queue]
	if !ok {
		return nil, nexdesk.ErrQueueNotFound
	}
	cp := *sched
	cp.Rules = append([]hours.Rule(nil), sched.Rules...)
	cp.Holidays = append([]hours.Holiday(nil), sched.Holidays...)
	return &cp, nil
}

// UpsertQueueConfig writes a queue's availability configuration.
func (m *Store) UpsertQueueConfig(_ context.Context, b tenant.Binding, cfg hours.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.lockedPartition(b)
	if err != nil {
		return err
	}
	sched, ok := p.schedules[cfg.Queue]
	if !ok {
		sched = &hours.Schedule{}
		p.schedules[cfg.Queue] = sched
	}
	sched.Config = cfg
	return nil
}

// ReplaceSchedule replaces a queue's weekly rules and holidays.
func (m *Store) ReplaceSchedule(_ context.Context, b tenant.Binding, queue string, rules []hours.Rule, holidays []hours.Holiday) error {
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.lockedPartition(b)
	if err != nil {
		return err
	}
	sched, ok := p.schedules[queue]
	if !ok {
		return nexdesk.ErrQueueNotFound
	}

	sched.Rules = append([]hours.Rule(nil), rules...)
	sort.Slice(sched.Rules, func(i, j int) bool {
		if sched.Rules[i].Weekday != sched.Rules[j].Weekday {
			return sched.Rules[i].Weekday < sched.Rules[j].Weekday
		}
		return sched.Rules[i].StartMinute < sched.Rules[j].StartMinute
	})
	sched.Holidays = append([]hours.Holiday(nil), holidays...)
	return nil
}
