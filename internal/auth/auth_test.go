package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "super-secret-jwt-key"

func serve(t *testing.T, a *Authenticator, req *http.Request, guard bool) (*httptest.ResponseRecorder, *User) {
	t.Helper()
	var seen *User
	var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserFromContext(r.Context())
	})
	if guard {
		h = RequireUser(h)
	}
	rec := httptest.NewRecorder()
	a.Middleware(h).ServeHTTP(rec, req)
	return rec, seen
}

func TestNewValidatesMode(t *testing.T) {
	_, err := New("token", "", "")
	assert.Error(t, err)
	_, err = New("jwt", "", "")
	assert.Error(t, err)
	_, err = New("oauth", "", "")
	assert.Error(t, err)
	a, err := New("", "", "")
	require.NoError(t, err)
	assert.Equal(t, ModeDisabled, a.Mode())
}

func TestDisabledModeIsLocalUser(t *testing.T) {
	a, _ := New(ModeDisabled, "", "")
	rec, u := serve(t, a, httptest.NewRequest("POST", "/", nil), true)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, u)
	assert.Equal(t, LocalUserID, u.ID)
}

func TestTokenMode(t *testing.T) {
	a, _ := New(ModeToken, "t0k", "")

	rec, u := serve(t, a, httptest.NewRequest("GET", "/", nil), false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, u, "no credential is anonymous")

	rec, _ = serve(t, a, httptest.NewRequest("POST", "/", nil), true)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest("POST", "/", nil)
	req.Header.Set("Authorization", "Bearer t0k")
	rec, u = serve(t, a, req, true)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, u)

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec, _ = serve(t, a, req, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())
}

func TestJWTMode(t *testing.T) {
	a, _ := New(ModeJWT, "", secret)
	tok, err := Sign(secret, "user-42", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec, u := serve(t, a, req, true)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, u)
	assert.Equal(t, "user-42", u.ID)

	req = httptest.NewRequest("GET", "/?token="+tok, nil)
	_, u = serve(t, a, req, true)
	require.NotNil(t, u, "query token for event streams")
}

func TestJWTModeRejects(t *testing.T) {
	a, _ := New(ModeJWT, "", secret)

	wrongKey, _ := Sign("other", "user-42", time.Hour)
	expired, _ := Sign(secret, "user-42", -time.Minute)
	noSub, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}).
		SignedString([]byte(secret))

	for name, tok := range map[string]string{"wrong key": wrongKey, "expired": expired, "no sub": noSub, "garbage": "abc"} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.Header.Set("Authorization", "Bearer "+tok)
			rec, _ := serve(t, a, req, false)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestUserIDAnonymous(t *testing.T) {
	assert.Equal(t, "", UserID(httptest.NewRequest("GET", "/", nil).Context()))
}
