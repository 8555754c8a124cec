package queue

import (
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// Config defines pull limits for a single queue.
type Config struct {
	// Name is the queue identifier.
	Name string

	// MaxInFlight limits how many pull attempts for this queue may be
	// in flight simultaneously. Zero means no limit.
	MaxInFlight int

	// RateLimit is the maximum sustained pull attempts per second.
	// Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the burst size for the token-bucket rate limiter.
	// Defaults to 1 if RateLimit is set but RateBurst is zero.
	RateBurst int
}

// TenantConfig tightens the limits for one tenant on one queue, so a
// single tenant's agent fleet cannot starve the others.
type TenantConfig struct {
	// QueueName is the queue this config applies to.
	QueueName string

	// TenantID identifies the tenant (typically the partition name).
	TenantID string

	// RateLimit is the sustained pull attempts per second for this
	// tenant on this queue.
	RateLimit float64

	// RateBurst is the burst size for the tenant's rate limiter.
	RateBurst int

	// MaxInFlight limits simultaneous pull attempts for this tenant on
	// this queue. Zero means no tenant-specific limit.
	MaxInFlight int
}

// limiterState tracks runtime state for one queue or queue+tenant pair.
type limiterState struct {
	limiter     *rate.Limiter
	maxInFlight int
	active      int
}

func newLimiterState(rateLimit float64, burst, maxInFlight int) *limiterState {
	s := &limiterState{maxInFlight: maxInFlight}
	if rateLimit > 0 {
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(rateLimit), burst)
	}
	return s
}

func (s *limiterState) hasCapacity() bool {
	return s.maxInFlight == 0 || s.active < s.maxInFlight
}

// takeToken consumes a rate token. The returned reservation lets the
// caller hand the token back when a later check rejects the pull.
func (s *limiterState) takeToken() (*rate.Reservation, bool) {
	if s.limiter == nil {
		return nil, true
	}
	r := s.limiter.Reserve()
	if !r.OK() || r.Delay() > 0 {
		r.Cancel()
		return nil, false
	}
	return r, true
}

// tenantKey builds the map key for a queue+tenant pair.
func tenantKey(queue, tenantID string) string {
	return fmt.Sprintf("%s:%s", queue, tenantID)
}

// Manager controls per-queue and per-tenant pull limits.
// It is safe for concurrent use.
type Manager struct {
	mu      sync.Mutex
	queues  map[string]*limiterState
	tenants map[string]*limiterState
}

// NewManager creates a Manager with the given queue configurations.
// Queues not listed here have no limits.
func NewManager(configs ...Config) *Manager {
	m := &Manager{
		queues:  make(map[string]*limiterState, len(configs)),
		tenants: make(map[string]*limiterState),
	}
	for _, cfg := range configs {
		m.queues[cfg.Name] = newLimiterState(cfg.RateLimit, cfg.RateBurst, cfg.MaxInFlight)
	}
	return m
}

// Acquire checks rate limits and in-flight caps for the queue and
// tenant. If the pull may proceed it increments the in-flight counters
// and returns true. The caller MUST call Release when the pull ends.
//
// In-flight caps are checked before any rate token is consumed, and a
// queue token is handed back when the tenant limiter then rejects, so
// a shed attempt never drains the buckets.
func (m *Manager) Acquire(queue, tenantID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	qs := m.queues[queue]
	var ts *limiterState
	if tenantID != "" {
		ts = m.tenants[tenantKey(queue, tenantID)]
	}

	if qs != nil && !qs.hasCapacity() {
		return false
	}
	if ts != nil && !ts.hasCapacity() {
		return false
	}

	var queueToken *rate.Reservation
	if qs != nil {
		r, ok := qs.takeToken()
		if !ok {
			return false
		}
		queueToken = r
	}
	if ts != nil {
		if _, ok := ts.takeToken(); !ok {
			if queueToken != nil {
				queueToken.Cancel()
			}
			return false
		}
	}

	if qs != nil {
		qs.active++
	}
	if ts != nil {
		ts.active++
	}
	return true
}

// Release decrements the in-flight counters for the queue and tenant.
func (m *Manager) Release(queue, tenantID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if qs := m.queues[queue]; qs != nil && qs.active > 0 {
		qs.active--
	}
	if tenantID != "" {
		if ts := m.tenants[tenantKey(queue, tenantID)]; ts != nil && ts.active > 0 {
			ts.active--
		}
	}
}

// SetQueueConfig dynamically updates (or creates) a queue configuration.
func (m *Manager) SetQueueConfig(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := newLimiterState(cfg.RateLimit, cfg.RateBurst, cfg.MaxInFlight)
	if existing := m.queues[cfg.Name]; existing != nil {
		s.active = existing.active
	}
	m.queues[cfg.Name] = s
}

// SetTenantConfig configures limits for a specific tenant on a
// specific queue. Calling this again for the same pair replaces the
// previous configuration.
func (m *Manager) SetTenantConfig(cfg TenantConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := tenantKey(cfg.QueueName, cfg.TenantID)
	s := newLimiterState(cfg.RateLimit, cfg.RateBurst, cfg.MaxInFlight)
	if existing := m.tenants[key]; existing != nil {
		s.active = existing.active
	}
	m.tenants[key] = s
}

// InFlight returns the current number of in-flight pulls for a queue.
func (m *Manager) InFlight(queue string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if qs := m.queues[queue]; qs != nil {
		return qs.active
	}
	return 0
}

// TenantInFlight returns the in-flight pull count for a queue+tenant pair.
func (m *Manager) TenantInFlight(queue, tenantID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ts := m.tenants[tenantKey(queue, tenantID)]; ts != nil {
		return ts.active
	}
	return 0
}
