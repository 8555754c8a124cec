package middleware

import (
	"context"
	"net/http"
	"time"
)

// Timeout returns middleware that enforces a per-request deadline.
// When the deadline passes, the request context is cancelled and
// handlers observing it should give up. A zero duration disables the
// deadline.
func Timeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
