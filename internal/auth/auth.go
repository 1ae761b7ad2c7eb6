// Package auth resolves the caller's identity from a bearer credential and
// guards the routes that need a signed-in user.
package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vanesdocs/vanesdocs/internal/apperr"
)

// Modes accepted by New.
const (
	ModeDisabled = "disabled"
	ModeToken    = "token"
	ModeJWT      = "jwt"
)

// LocalUserID is the identity of every caller when auth is disabled, and of
// static-token callers.
const LocalUserID = "local"

// User is an authenticated caller.
type User struct {
	ID string `json:"id"`
}

type ctxKey struct{}

// WithUser attaches u to ctx.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// UserFromContext returns the caller, or nil for anonymous requests.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(ctxKey{}).(*User)
	return u
}

// UserID returns the caller's id or "" when anonymous.
func UserID(ctx context.Context) string {
	if u := UserFromContext(ctx); u != nil {
		return u.ID
	}
	return ""
}

// Authenticator turns credentials into users.
type Authenticator struct {
	mode   string
	token  string
	secret []byte
}

// New returns an Authenticator. token is used in token mode, secret in jwt
// mode.
func New(mode, token, secret string) (*Authenticator, error) {
	switch mode {
	case ModeDisabled, "":
		return &Authenticator{mode: ModeDisabled}, nil
	case ModeToken:
		if token == "" {
			return nil, errors.New("auth: token mode needs a token")
		}
		return &Authenticator{mode: ModeToken, token: token}, nil
	case ModeJWT:
		if secret == "" {
			return nil, errors.New("auth: jwt mode needs a secret")
		}
		return &Authenticator{mode: ModeJWT, secret: []byte(secret)}, nil
	default:
		return nil, fmt.Errorf("auth: unknown mode %q", mode)
	}
}

// Mode returns the configured mode.
func (a *Authenticator) Mode() string { return a.mode }

// Authenticate resolves a raw credential. An empty credential is anonymous
// (nil user, nil error) except in disabled mode, where everyone is local.
func (a *Authenticator) Authenticate(credential string) (*User, error) {
	switch a.mode {
	case ModeDisabled:
		return &User{ID: LocalUserID}, nil
	case ModeToken:
		if credential == "" {
			return nil, nil
		}
		if subtle.ConstantTimeCompare([]byte(credential), []byte(a.token)) != 1 {
			return nil, apperr.ErrUnauthorized
		}
		return &User{ID: LocalUserID}, nil
	}

	if credential == "" {
		return nil, nil
	}
	token, err := jwt.Parse(credential, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", apperr.ErrUnauthorized, err)
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("%w: sub claim is missing", apperr.ErrUnauthorized)
	}
	return &User{ID: sub}, nil
}

// Sign issues an HS256 token for sub valid for ttl.
func Sign(secret, sub string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   sub,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// credential reads the bearer token, falling back to the token query
// parameter that browser EventSource and WebSocket clients use.
func credential(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.URL.Query().Get("token")
}

// Middleware attaches the caller to the request context. Anonymous requests
// pass through; an invalid credential is rejected with 401.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := a.Authenticate(credential(r))
		if err != nil {
			slog.Debug("auth rejected", slog.String("error", err.Error()))
			writeUnauthorized(w)
			return
		}
		if u != nil {
			r = r.WithContext(WithUser(r.Context(), u))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireUser rejects anonymous requests with 401.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFromContext(r.Context()) == nil {
			writeUnauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
}
