package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// UnmatchedRoute labels requests that no route matched.
const UnmatchedRoute = "unmatched"

// RoutePattern returns the route template the request was dispatched to,
// e.g. "/*" for avatar lookups, never the concrete path.
//
// chi fills the pattern while routing, so middlewares installed with Use
// must call this after next.ServeHTTP has returned.
func RoutePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return UnmatchedRoute
	}
	if p := rctx.RoutePattern(); p != "" {
		return p
	}
	return UnmatchedRoute
}
