package middleware

import (
	"context"
	"net/http"
	"time"
)

// CycleTimeout wraps a handler with a generous deadline for endpoints that
// run a full retrieval cycle synchronously. Those can legitimately take far
// longer than a normal request, one declaration at a time.
func CycleTimeout(limit time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), limit)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
