package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// Recover returns middleware that recovers from panics in the handler
// chain. Panics are logged with a stack trace and answered with a
// 500 if nothing has been written yet.
func Recover(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w}
			defer func() {
				if p := recover(); p != nil {
					logger.Error("handler panicked",
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.Any("panic", p),
						slog.String("stack", string(debug.Stack())),
					)
					if rec.status == 0 {
						http.Error(rec, "internal server error", http.StatusInternalServerError)
					}
				}
			}()
			next.ServeHTTP(rec, r)
		})
	}
}
