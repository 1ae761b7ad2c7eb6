package session

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// DefaultCookieName names the session cookie when none is configured.
const DefaultCookieName = "vd_session"

type ctxKey struct{}

// FromContext returns the session id attached by Middleware.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// WithID attaches a session id to ctx.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// Middleware reads the session cookie and issues a fresh uuid when it is
// missing or malformed. The cookie carries no Max-Age so it ends with the
// browser session; server-side expiry is the Store's TTL.
func Middleware(cookieName string) func(http.Handler) http.Handler {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if c, err := r.Cookie(cookieName); err == nil {
				if _, perr := uuid.Parse(c.Value); perr == nil {
					id = c.Value
				}
			}
			if id == "" {
				id = uuid.NewString()
				http.SetCookie(w, newCookie(cookieName, id, r.TLS != nil))
			}
			next.ServeHTTP(w, r.WithContext(WithID(r.Context(), id)))
		})
	}
}

// Expire overwrites the session cookie with an expired one.
func Expire(w http.ResponseWriter, cookieName string) {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	c := newCookie(cookieName, "", false)
	c.MaxAge = -1
	http.SetCookie(w, c)
}

func newCookie(name, value string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}
