package middleware

import (
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SpanName is the name of the per-request span.
const SpanName = "http_request"

// Tracing opens one span per request named SpanName.
//
// Besides otelhttp's standard attributes the span carries "method",
// "request_id" and "matched_path". matched_path is the route template, set
// once routing is done, so avatar lookups for different users share one
// value.
func Tracing(tp trace.TracerProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		annotated := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			span := trace.SpanFromContext(r.Context())
			span.SetAttributes(
				attribute.String("method", r.Method),
				attribute.String("request_id", chimiddleware.GetReqID(r.Context())),
			)

			next.ServeHTTP(w, r)

			span.SetAttributes(attribute.String("matched_path", RoutePattern(r)))
		})

		return otelhttp.NewHandler(annotated, SpanName,
			otelhttp.WithTracerProvider(tp),
			otelhttp.WithSpanNameFormatter(func(string, *http.Request) string {
				return SpanName
			}),
		)
	}
}
