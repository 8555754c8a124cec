package hours

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nexdesk/nexdesk/tenant"
)

// Service evaluates queue availability against stored schedules.
type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger for the Service.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// WithClock overrides the wall clock. Tests use this to pin "now".
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service backed by the given store.
func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsOpen evaluates the queue at the given instant. A zero instant
// means "now", which serves live gating; a pinned instant serves
// retroactive and what-if queries.
func (s *Service) IsOpen(ctx context.Context, b tenant.Binding, queue string, at time.Time) (Decision, error) {
	if at.IsZero() {
		at = s.now()
	}

	sched, err := s.store.GetSchedule(ctx, b, queue)
	if err != nil {
		return Decision{}, fmt.Errorf("hours: schedule for queue %q: %w", queue, err)
	}

	d, err := Evaluate(*sched, at)
	if err != nil {
		return Decision{}, err
	}

	s.logger.Debug("queue availability evaluated",
		slog.String("partition", b.Partition),
		slog.String("queue", queue),
		slog.Bool("open", d.Open),
		slog.String("reason", string(d.Reason)),
	)
	return d, nil
}
