package ratelimit

import (
	"net/http"

	"github.com/dalemusser/alumnihub/internal/app/system/apperr"
	"github.com/dalemusser/alumnihub/internal/app/system/respond"
)

// KeyFunc derives the bucket key for a request.
type KeyFunc func(r *http.Request) string

// ByIP keys requests by client IP.
func ByIP(r *http.Request) string { return "ip:" + ClientIP(r) }

// Middleware rejects mutating requests over budget with 429. Safe methods
// (GET, HEAD, OPTIONS) pass through uncounted.
func Middleware(c Checker, key KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}
			if !c.Allow(r.Context(), "write:"+key(r)) {
				respond.Error(w, r, nil, apperr.RateLimited("too many requests, slow down"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
