// Package middleware provides composable HTTP middleware for the
// dispatch API.
//
// A [Middleware] is a function that wraps an http.Handler. Middleware
// are composed into a chain using [Chain] and applied right-to-left:
// the first middleware in the slice is the outermost wrapper.
//
//	// logging → recover → handler
//	h := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))(handler)
//
// # Built-in Middleware
//
//   - [Logging] — logs method, path, tenant, status, and duration per request
//   - [Recover] — catches panics and responds 500
//   - [Timeout] — cancels the request context after a configured duration
//   - [Tracing] — wraps handling in an OpenTelemetry span
//   - [Metrics] — records per-request duration and counters
//
// Tracing and Metrics read the global OpenTelemetry providers; when
// none are configured they fall back to the noop implementations and
// cost nothing.
package middleware
