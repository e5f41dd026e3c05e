package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync/atomic"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-Id"

// RequestIDCounter hands out process-wide request ids: 0, 1, 2, ... in
// decimal. The zero value is ready to use and safe for concurrent use.
type RequestIDCounter struct {
	n atomic.Uint64
}

// Next returns the next id.
func (c *RequestIDCounter) Next() string {
	return strconv.FormatUint(c.n.Add(1)-1, 10)
}

// RequestID assigns a request id from counter unless the client sent one,
// and propagates it to the response header.
//
// The id is stored under chi's RequestIDKey, so chimiddleware.GetReqID works
// everywhere downstream. It is also written back onto the request header
// for handlers that read headers directly.
func RequestID(counter *RequestIDCounter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = counter.Next()
				r.Header.Set(RequestIDHeader, id)
			}

			w.Header().Set(RequestIDHeader, id)

			ctx := context.WithValue(r.Context(), chimiddleware.RequestIDKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
