// Package middleware contains the HTTP middleware chain of the service.
//
// WHAT IS MIDDLEWARE?
// A function that wraps an HTTP handler to add cross-cutting behaviour
// (deadlines, ids, logging, limits) without touching the handler itself.
// Every middleware has the shape
//
//	func(next http.Handler) http.Handler
//
// and is installed with chi's Router.Use. The request passes the layers in
// the order they are added and the response unwinds in reverse, so the
// order in internal/server is part of the behaviour:
//
//	Timeout → Recoverer → RequestID → Logger → Tracing → RateLimit → Compress → Metrics → handler
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// responseWriter wraps http.ResponseWriter to capture the status code.
// Go's http.ResponseWriter doesn't expose the status after WriteHeader is
// called, so we track it ourselves.
type responseWriter struct {
	http.ResponseWriter       // Embedding: all other methods pass straight through
	statusCode          int   // Last status passed to WriteHeader
	written             int64 // Body bytes written
}

// WriteHeader captures the status code before delegating to the embedded ResponseWriter.
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Write captures bytes written and delegates to the embedded ResponseWriter.
func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Logger returns an HTTP middleware that logs each completed request.
//
// The line carries the request id and the matched route template. The
// concrete path is logged by the avatar handler itself, at info level.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK, // Default if WriteHeader is never called
			}

			next.ServeHTTP(wrapped, r)

			logger.Info("request completed",
				slog.String("request_id", chimiddleware.GetReqID(r.Context())),
				slog.String("method", r.Method),
				slog.String("route", RoutePattern(r)),
				slog.Int("status", wrapped.statusCode),
				slog.Duration("duration", time.Since(start)),
				slog.Int64("bytes", wrapped.written),
			)
		})
	}
}
