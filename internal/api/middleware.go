// Package api implements the vanesdocs REST API using chi.
package api

import (
	"net/http"

	"github.com/vanesdocs/vanesdocs/internal/session"
)

// SessionMiddleware attaches the unlock session to every request. Responses
// that depend on it must not be cached by shared caches.
func SessionMiddleware(cookieName string) func(http.Handler) http.Handler {
	issue := session.Middleware(cookieName)
	return func(next http.Handler) http.Handler {
		return issue(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("Vary", "Cookie")
			w.Header().Set("Cache-Control", "private, no-store")
			next.ServeHTTP(w, r)
		}))
	}
}
