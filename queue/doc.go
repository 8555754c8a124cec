// Package queue enforces per-queue and per-tenant limits on ticket
// pulls.
//
// Agents poll the dispatcher, and a busy help desk can turn polling
// into a stampede. The Manager gates pull attempts with a token-bucket
// rate limiter (golang.org/x/time/rate) and an in-flight counter per
// queue, optionally tightened per tenant.
//
//	m := queue.NewManager(
//	    queue.Config{Name: "support", RateLimit: 50, RateBurst: 100},
//	    queue.Config{Name: "billing", MaxInFlight: 4},
//	)
//	if m.Acquire("support", binding.Partition) {
//	    defer m.Release("support", binding.Partition)
//	    // run the pull
//	}
//
// Queues without a Config have no limits. The Manager never orders or
// selects tickets; correctness of dispatch is carried entirely by the
// store's locking, and the Manager only sheds load in front of it.
package queue
