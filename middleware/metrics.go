package middleware

import (
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/nexdesk/nexdesk/tenant"
)

// meterName is the instrumentation scope name for nexdesk metrics.
const meterName = "github.com/nexdesk/nexdesk"

// Metrics returns middleware that records per-request metrics using
// the global OTel MeterProvider. If no MeterProvider is configured,
// noop instruments are used and this middleware becomes a pass-through.
//
// Instruments:
//   - nexdesk.request.duration (Float64Histogram): handling time in
//     seconds, with attributes: method, path, status, tenant
//   - nexdesk.request.count (Int64Counter): total requests,
//     with attributes: method, path, status, tenant
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(meterName))
}

// MetricsWithMeter returns metrics middleware using the provided meter.
// This variant allows injecting a specific MeterProvider for testing.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// Create instruments once at middleware construction time.
	// OTel instruments are safe for concurrent use. On error, the API
	// returns noop instruments so the middleware degrades gracefully.
	duration, dErr := meter.Float64Histogram(
		"nexdesk.request.duration",
		metric.WithDescription("Duration of request handling in seconds"),
		metric.WithUnit("s"),
	)
	_ = dErr // noop fallback guaranteed by OTel API contract

	count, cErr := meter.Int64Counter(
		"nexdesk.request.count",
		metric.WithDescription("Total number of requests handled"),
		metric.WithUnit("{request}"),
	)
	_ = cErr // noop fallback guaranteed by OTel API contract

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w}
			start := time.Now()

			next.ServeHTTP(rec, r)

			partition := ""
			if b, ok := tenant.FromContext(r.Context()); ok {
				partition = b.Partition
			}

			attrs := metric.WithAttributes(
				attribute.String("method", r.Method),
				attribute.String("path", r.URL.Path),
				attribute.String("status", strconv.Itoa(rec.Status())),
				attribute.String("tenant", partition),
			)

			duration.Record(r.Context(), time.Since(start).Seconds(), attrs)
			count.Add(r.Context(), 1, attrs)
		})
	}
}
