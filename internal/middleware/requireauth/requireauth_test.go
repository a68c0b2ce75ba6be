package requireauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"gametrack/internal/http_server/cookies"
	"gametrack/internal/lib/jwt"
	sl "gametrack/internal/lib/logger"

	"github.com/stretchr/testify/assert"
)

type fakeParser struct{}

func (fakeParser) ParseAccessToken(token string) (*jwt.Claims, error) {
	switch token {
	case "good":
		return &jwt.Claims{UserID: 42}, nil
	case "revoked":
		c := &jwt.Claims{UserID: 42}
		c.ID = "revoked-jti"
		return c, nil
	case "broken-denylist":
		c := &jwt.Claims{UserID: 42}
		c.ID = "error"
		return c, nil
	}
	return nil, jwt.ErrInvalidToken
}

type fakeDenylist struct{}

func (fakeDenylist) IsAccessTokenRevoked(_ context.Context, jti string) (bool, error) {
	if jti == "error" {
		return false, errors.New("redis down")
	}
	return jti == "revoked-jti", nil
}

func TestRequireAuth(t *testing.T) {
	tests := []struct {
		name       string
		cookie     string
		wantStatus int
		wantError  string
	}{
		{name: "no cookie", wantStatus: http.StatusUnauthorized, wantError: "Access denied. No token provided."},
		{name: "invalid token", cookie: "garbage", wantStatus: http.StatusUnauthorized, wantError: "Invalid token."},
		{name: "revoked token", cookie: "revoked", wantStatus: http.StatusUnauthorized, wantError: "Invalid token."},
		{name: "denylist failure", cookie: "broken-denylist", wantStatus: http.StatusInternalServerError, wantError: "Internal error"},
		{name: "valid token", cookie: "good", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUID int64

			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUID, _ = UserID(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			h := New(sl.NewDiscardLogger(), fakeParser{}, fakeDenylist{})(next)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: cookies.AccessToken, Value: tt.cookie})
			}
			rr := httptest.NewRecorder()

			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantError != "" {
				assert.Contains(t, rr.Body.String(), tt.wantError)
				assert.Zero(t, gotUID)
				return
			}
			assert.Equal(t, int64(42), gotUID)
		})
	}
}

func TestUserID_Missing(t *testing.T) {
	_, ok := UserID(context.Background())
	assert.False(t, ok)
}
