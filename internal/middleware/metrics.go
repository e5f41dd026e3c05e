package middleware

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/felixge/httpsnoop"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instrument names. The Prometheus exporter renders them as
// http_requests_total and http_request_duration_seconds.
const (
	RequestsCounterName   = "http.requests"
	DurationHistogramName = "http.request.duration"
)

// Metrics records a request counter and a latency histogram.
//
// Both are keyed by method, route template and status. Using the template
// keeps one series for all avatar lookups instead of one per user id.
type Metrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

// NewMetrics creates the instruments on a meter from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter("github.com/sakif/avatar-redirect/internal/middleware")

	requests, err := meter.Int64Counter(RequestsCounterName,
		metric.WithDescription("Number of HTTP requests handled."),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("middleware: creating request counter: %w", err)
	}

	duration, err := meter.Float64Histogram(DurationHistogramName,
		metric.WithDescription("HTTP request latency."),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("middleware: creating duration histogram: %w", err)
	}

	return &Metrics{requests: requests, duration: duration}, nil
}

// Handler is the middleware.
func (m *Metrics) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snoop := httpsnoop.CaptureMetrics(next, w, r)

		attrs := metric.WithAttributes(
			attribute.String("method", r.Method),
			attribute.String("path", RoutePattern(r)),
			attribute.String("status", strconv.Itoa(snoop.Code)),
		)
		m.requests.Add(r.Context(), 1, attrs)
		m.duration.Record(r.Context(), snoop.Duration.Seconds(), attrs)
	})
}
