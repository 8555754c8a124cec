// Package worker runs the agent-side polling loop. A Poller repeatedly
// asks the dispatcher for the next ticket and hands claimed tickets to
// a handler, backing off while the queues are empty.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nexdesk/nexdesk/backoff"
	"github.com/nexdesk/nexdesk/ticket"
)

// PullFunc asks for the next ticket. It returns (nil, nil) when no
// ticket is available right now.
type PullFunc func(ctx context.Context) (*ticket.Ticket, error)

// HandleFunc processes a claimed ticket. The ticket already belongs to
// the agent when the handler runs; the handler decides when to close it.
type HandleFunc func(ctx context.Context, t *ticket.Ticket)

// Poller manages a set of goroutines that poll for tickets through a
// PullFunc and pass each claimed ticket to a HandleFunc.
type Poller struct {
	pull        PullFunc
	handle      HandleFunc
	concurrency int
	idle        backoff.Strategy
	retry       backoff.Strategy
	logger      *slog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup

	mu         sync.Mutex
	running    bool
	pullCtx    context.Context
	pullCancel context.CancelFunc
}

// Option configures a Poller.
type Option func(*Poller)

// WithConcurrency sets the number of concurrent polling goroutines.
func WithConcurrency(n int) Option {
	return func(p *Poller) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithIdleBackoff sets the strategy used between empty polls.
func WithIdleBackoff(s backoff.Strategy) Option {
	return func(p *Poller) { p.idle = s }
}

// WithRetryBackoff sets the strategy used after a pull error.
func WithRetryBackoff(s backoff.Strategy) Option {
	return func(p *Poller) { p.retry = s }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Poller) { p.logger = logger }
}

// New creates a poller. pull and handle must be non-nil.
func New(pull PullFunc, handle HandleFunc, opts ...Option) *Poller {
	p := &Poller{
		pull:        pull,
		handle:      handle,
		concurrency: 1,
		idle:        backoff.DefaultIdle(),
		retry:       backoff.DefaultRetry(),
		logger:      slog.Default(),
		stopCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the polling goroutines. It returns immediately.
func (p *Poller) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true
	p.pullCtx, p.pullCancel = context.WithCancel(context.Background())

	p.logger.Info("poller starting", slog.Int("concurrency", p.concurrency))

	for range p.concurrency {
		p.wg.Add(1)
		go p.pollLoop()
	}

	return nil
}

// Stop signals the polling goroutines to stop and waits for them to
// finish, or until the context expires.
func (p *Poller) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	cancel := p.pullCancel
	p.mu.Unlock()

	p.logger.Info("poller stopping")

	// Cancelling the pull context unblocks any in-flight pull so the
	// loops can observe the stop signal.
	close(p.stopCh)
	cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("poller stopped gracefully")
		return nil
	case <-ctx.Done():
		p.logger.Warn("poller shutdown timed out")
		return ctx.Err()
	}
}

// pollLoop is run by each polling goroutine. Consecutive empty polls
// and consecutive pull errors each stretch their own backoff; any
// claimed ticket resets both.
func (p *Poller) pollLoop() {
	defer p.wg.Done()

	var emptyPolls, pullErrors int

	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		t, err := p.pull(p.pullCtx)
		if err != nil {
			if p.pullCtx.Err() != nil {
				return
			}
			pullErrors++
			p.logger.Error("pull failed",
				slog.Int("consecutive_errors", pullErrors),
				slog.String("error", err.Error()),
			)
			p.sleep(p.retry.Delay(pullErrors))
			continue
		}
		pullErrors = 0

		if t == nil {
			emptyPolls++
			p.sleep(p.idle.Delay(emptyPolls))
			continue
		}
		emptyPolls = 0

		p.logger.Debug("ticket claimed",
			slog.String("ticket_id", t.ID.String()),
			slog.String("queue", t.Queue),
		)
		p.handle(context.Background(), t)
	}
}

func (p *Poller) sleep(d time.Duration) {
	select {
	case <-time.After(d):
	case <-p.stopCh:
	}
}
