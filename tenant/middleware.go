package tenant

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nexdesk/nexdesk"
)

// MiddlewareOption configures the resolution middleware.
type MiddlewareOption func(*middlewareConfig)

type middlewareConfig struct {
	bypass map[string]struct{}
	logger *slog.Logger
}

// WithBypassPaths sets the exact paths exempt from tenant resolution.
// Defaults to "/healthz" only.
func WithBypassPaths(paths ...string) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.bypass = make(map[string]struct{}, len(paths))
		for _, p := range paths {
			c.bypass[p] = struct{}{}
		}
	}
}

// WithMiddlewareLogger sets the logger for the middleware.
func WithMiddlewareLogger(logger *slog.Logger) MiddlewareOption {
	return func(c *middlewareConfig) { c.logger = logger }
}

// Middleware resolves the tenant before any tenant-scoped handler runs
// and attaches the Binding to the request context. When the path
// carries a "/t/<tenant>/" prefix, the prefix is stripped before the
// request reaches the next handler.
//
// A resolution failure stops the request here: no partition is ever
// touched for an unresolved request. Catalog-missing is reported as a
// server error so operators can tell a broken install apart from a
// request for an unknown tenant.
func Middleware(resolver *Resolver, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := &middlewareConfig{
		bypass: map[string]struct{}{"/healthz": {}},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := cfg.bypass[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			binding, err := resolver.Resolve(r)
			if err != nil {
				writeResolutionError(w, r, cfg.logger, err)
				return
			}

			if _, rest, ok := SplitPathPrefix(r.URL.Path); ok {
				r = r.Clone(r.Context())
				r.URL.Path = rest
			}

			r = r.WithContext(NewContext(r.Context(), binding))
			next.ServeHTTP(w, r)
		})
	}
}

func writeResolutionError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var status int
	var code string

	switch {
	case errors.Is(err, nexdesk.ErrCatalogMissing):
		// Broken install, not a bad request.
		status = http.StatusServiceUnavailable
		code = "catalog_missing"
		logger.Error("tenant catalog missing",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	case errors.Is(err, nexdesk.ErrTenantNotFound):
		status = http.StatusNotFound
		code = "tenant_not_found"
	case errors.Is(err, nexdesk.ErrNoTenantSignal):
		status = http.StatusNotFound
		code = "no_tenant"
	default:
		status = http.StatusInternalServerError
		code = "internal"
		logger.Error("tenant resolution failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}
