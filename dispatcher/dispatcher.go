// Package dispatcher assigns tickets to agents. It ties the pieces
// together: business hours decide which queues are eligible, the queue
// manager sheds pull storms, the store does the actual claim, and
// transient database failures are retried with backoff.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nexdesk/nexdesk"
	"github.com/nexdesk/nexdesk/backoff"
	"github.com/nexdesk/nexdesk/hours"
	"github.com/nexdesk/nexdesk/queue"
	"github.com/nexdesk/nexdesk/tenant"
	"github.com/nexdesk/nexdesk/ticket"
)

// Dispatcher claims tickets for agents.
type Dispatcher struct {
	tickets     ticket.Store
	hours       *hours.Service
	limits      *queue.Manager
	retry       backoff.Strategy
	maxAttempts int
	logger      *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithQueueManager sets the queue manager used to rate-limit and cap
// concurrent pull attempts. Without one, pulls are unthrottled.
func WithQueueManager(m *queue.Manager) Option {
	return func(d *Dispatcher) { d.limits = m }
}

// WithRetryBackoff sets the strategy used between transient-error
// retries.
func WithRetryBackoff(s backoff.Strategy) Option {
	return func(d *Dispatcher) { d.retry = s }
}

// WithMaxAttempts sets how many times a pull is attempted before a
// transient error is returned to the caller.
func WithMaxAttempts(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxAttempts = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// New creates a Dispatcher. hoursSvc may be nil, in which case pulls
// are not gated by business hours.
func New(tickets ticket.Store, hoursSvc *hours.Service, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		tickets:     tickets,
		hours:       hoursSvc,
		retry:       backoff.DefaultRetry(),
		maxAttempts: 3,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Pull claims the next ticket for agentID from the given queues.
// Queues outside their business hours are removed from the candidate
// set before the store pull; if the set empties, Pull returns
// (nil, nil) just as it does when every queue is drained.
func (d *Dispatcher) Pull(ctx context.Context, b tenant.Binding, agentID string, queues []string) (*ticket.Ticket, error) {
	if len(queues) == 0 {
		return nil, nil
	}

	eligible, err := d.openQueues(ctx, b, queues)
	if err != nil {
		return nil, err
	}
	if len(eligible) == 0 {
		return nil, nil
	}

	admitted := d.acquire(b, eligible)
	if len(admitted) == 0 {
		return nil, nil
	}
	defer d.release(b, admitted)

	return d.pullWithRetry(ctx, b, admitted, agentID)
}

// openQueues filters the candidate set through the business-hours
// evaluator. A queue with no schedule configured stays eligible.
func (d *Dispatcher) openQueues(ctx context.Context, b tenant.Binding, queues []string) ([]string, error) {
	if d.hours == nil {
		return queues, nil
	}

	eligible := make([]string, 0, len(queues))
	for _, q := range queues {
		decision, err := d.hours.IsOpen(ctx, b, q, time.Time{})
		if err != nil {
			if errors.Is(err, nexdesk.ErrQueueNotFound) {
				eligible = append(eligible, q)
				continue
			}
			return nil, fmt.Errorf("dispatcher: hours check for queue %q: %w", q, err)
		}
		if decision.Open {
			eligible = append(eligible, q)
			continue
		}
		d.logger.Debug("queue closed, skipping",
			slog.String("partition", b.Partition),
			slog.String("queue", q),
			slog.String("reason", string(decision.Reason)),
		)
	}
	return eligible, nil
}

// acquire admits queues through the queue manager. Queues over their
// rate or concurrency caps are shed from this attempt.
func (d *Dispatcher) acquire(b tenant.Binding, queues []string) []string {
	if d.limits == nil {
		return queues
	}

	admitted := make([]string, 0, len(queues))
	for _, q := range queues {
		if d.limits.Acquire(q, b.Partition) {
			admitted = append(admitted, q)
		}
	}
	return admitted
}

func (d *Dispatcher) release(b tenant.Binding, queues []string) {
	if d.limits == nil {
		return
	}
	for _, q := range queues {
		d.limits.Release(q, b.Partition)
	}
}

// pullWithRetry attempts the store pull, retrying transient failures.
// Non-transient errors and successful claims return immediately.
func (d *Dispatcher) pullWithRetry(ctx context.Context, b tenant.Binding, queues []string, agentID string) (*ticket.Ticket, error) {
	var lastErr error

	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		t, err := d.tickets.PullNext(ctx, b, queues, agentID)
		if err == nil {
			if t != nil {
				d.logger.Info("ticket dispatched",
					slog.String("partition", b.Partition),
					slog.String("ticket_id", t.ID.String()),
					slog.String("queue", t.Queue),
					slog.String("agent_id", agentID),
				)
			}
			return t, nil
		}
		if !nexdesk.IsTransient(err) {
			return nil, err
		}

		lastErr = err
		d.logger.Warn("pull failed, retrying",
			slog.String("partition", b.Partition),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)

		if attempt < d.maxAttempts {
			select {
			case <-time.After(d.retry.Delay(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, fmt.Errorf("dispatcher: pull failed after %d attempts: %w", d.maxAttempts, lastErr)
}
