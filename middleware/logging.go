package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/nexdesk/nexdesk/tenant"
)

// Logging returns middleware that logs each request after it completes.
// When a tenant binding is present on the request context, its
// partition is included.
func Logging(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w}
			start := time.Now()

			next.ServeHTTP(rec, r)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.Status()),
				slog.Duration("elapsed", time.Since(start)),
			}
			if b, ok := tenant.FromContext(r.Context()); ok {
				attrs = append(attrs, slog.String("tenant", b.Partition))
			}

			level := slog.LevelInfo
			if rec.Status() >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.LogAttrs(r.Context(), level, "request completed", attrs...)
		})
	}
}
