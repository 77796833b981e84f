package kit

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

const unmatchedRoute = "unmatched"

// ChiRoutePatternOrUnmatched keeps metric label cardinality bounded: requests
// that hit no route share one label instead of leaking raw paths.
func ChiRoutePatternOrUnmatched(r *http.Request) string {
	rc := chi.RouteContext(r.Context())
	if rc == nil {
		return unmatchedRoute
	}
	if rp := rc.RoutePattern(); rp != "" {
		return rp
	}
	return unmatchedRoute
}
