package queue

import (
	"sync"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Manager basics
// ---------------------------------------------------------------------------

func TestNewManager_Empty(t *testing.T) {
	m := NewManager()
	// No configs; Acquire/Release should always succeed.
	if !m.Acquire("any-queue", "") {
		t.Fatal("expected Acquire to succeed for unconfigured queue")
	}
	m.Release("any-queue", "")
}

func TestManager_MaxInFlight(t *testing.T) {
	m := NewManager(Config{Name: "support", MaxInFlight: 2})

	if !m.Acquire("support", "") {
		t.Fatal("first Acquire should succeed")
	}
	if !m.Acquire("support", "") {
		t.Fatal("second Acquire should succeed")
	}
	if m.Acquire("support", "") {
		t.Fatal("third Acquire should fail (max in-flight 2)")
	}

	m.Release("support", "")
	if !m.Acquire("support", "") {
		t.Fatal("Acquire should succeed after Release")
	}
}

func TestManager_InFlightCount(t *testing.T) {
	m := NewManager(Config{Name: "support", MaxInFlight: 5})

	for i := range 3 {
		if !m.Acquire("support", "") {
			t.Fatalf("Acquire %d should succeed", i)
		}
	}
	if m.InFlight("support") != 3 {
		t.Fatalf("expected 3 in flight, got %d", m.InFlight("support"))
	}

	m.Release("support", "")
	m.Release("support", "")
	if m.InFlight("support") != 1 {
		t.Fatalf("expected 1 in flight, got %d", m.InFlight("support"))
	}
}

// ---------------------------------------------------------------------------
// Rate limiting
// ---------------------------------------------------------------------------

func TestManager_RateLimit_Throttles(t *testing.T) {
	m := NewManager(Config{Name: "limited", RateLimit: 1.0, RateBurst: 1})

	if !m.Acquire("limited", "") {
		t.Fatal("first Acquire should succeed (within burst)")
	}
	m.Release("limited", "")

	// Immediately after, the token bucket is empty.
	if m.Acquire("limited", "") {
		t.Fatal("second Acquire should fail (rate limited)")
	}

	time.Sleep(1100 * time.Millisecond)
	if !m.Acquire("limited", "") {
		t.Fatal("Acquire should succeed after token refill")
	}
	m.Release("limited", "")
}

// ---------------------------------------------------------------------------
// Per-tenant limits
// ---------------------------------------------------------------------------

func TestManager_TenantInFlightCap(t *testing.T) {
	m := NewManager(Config{Name: "support", MaxInFlight: 10})
	m.SetTenantConfig(TenantConfig{
		QueueName:   "support",
		TenantID:    "tenant_acme",
		MaxInFlight: 1,
	})

	if !m.Acquire("support", "tenant_acme") {
		t.Fatal("first tenant Acquire should succeed")
	}
	if m.Acquire("support", "tenant_acme") {
		t.Fatal("second tenant Acquire should fail (tenant cap 1)")
	}
	// Other tenants are unaffected.
	if !m.Acquire("support", "tenant_other") {
		t.Fatal("other tenant should not be limited")
	}

	m.Release("support", "tenant_acme")
	if !m.Acquire("support", "tenant_acme") {
		t.Fatal("tenant Acquire should succeed after Release")
	}
}

func TestManager_TenantCapRejectionKeepsQueueTokens(t *testing.T) {
	// Two queue tokens, refilling far too slowly to matter here.
	m := NewManager(Config{Name: "support", RateLimit: 0.001, RateBurst: 2})
	m.SetTenantConfig(TenantConfig{
		QueueName:   "support",
		TenantID:    "tenant_acme",
		MaxInFlight: 1,
	})

	if !m.Acquire("support", "tenant_acme") {
		t.Fatal("first Acquire should succeed")
	}
	// Rejected by the tenant cap; must not consume the second token.
	if m.Acquire("support", "tenant_acme") {
		t.Fatal("second Acquire should fail (tenant cap 1)")
	}

	m.Release("support", "tenant_acme")
	if !m.Acquire("support", "tenant_acme") {
		t.Fatal("Acquire should succeed on the remaining queue token")
	}
}

func TestManager_TenantLimiterRejectionRefundsQueueToken(t *testing.T) {
	m := NewManager(Config{Name: "support", RateLimit: 0.001, RateBurst: 2})
	m.SetTenantConfig(TenantConfig{
		QueueName: "support",
		TenantID:  "tenant_acme",
		RateLimit: 0.001,
		RateBurst: 1,
	})

	if !m.Acquire("support", "tenant_acme") {
		t.Fatal("first Acquire should succeed")
	}
	m.Release("support", "tenant_acme")

	// Tenant bucket is empty now; the rejection must refund the queue
	// token it reserved.
	if m.Acquire("support", "tenant_acme") {
		t.Fatal("second Acquire should fail (tenant bucket empty)")
	}
	if !m.Acquire("support", "tenant_other") {
		t.Fatal("another tenant should get the refunded queue token")
	}
}

func TestManager_SetQueueConfig_PreservesActive(t *testing.T) {
	m := NewManager(Config{Name: "support", MaxInFlight: 2})
	if !m.Acquire("support", "") {
		t.Fatal("Acquire should succeed")
	}

	m.SetQueueConfig(Config{Name: "support", MaxInFlight: 1})
	if m.InFlight("support") != 1 {
		t.Fatalf("reconfigure lost active count, got %d", m.InFlight("support"))
	}
	if m.Acquire("support", "") {
		t.Fatal("Acquire should fail against the tightened cap")
	}
}

// ---------------------------------------------------------------------------
// Concurrency
// ---------------------------------------------------------------------------

func TestManager_ConcurrentAcquireRelease(t *testing.T) {
	m := NewManager(Config{Name: "support", MaxInFlight: 50})

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.Acquire("support", "tenant_acme") {
				m.Release("support", "tenant_acme")
			}
		}()
	}
	wg.Wait()

	if m.InFlight("support") != 0 {
		t.Fatalf("expected 0 in flight after all releases, got %d", m.InFlight("support"))
	}
}
