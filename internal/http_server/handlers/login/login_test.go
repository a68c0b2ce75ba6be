package login

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gametrack/internal/auth"
	"gametrack/internal/http_server/cookies"
	sl "gametrack/internal/lib/logger"
	"gametrack/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLoginer struct {
	gotEmail, gotUsername, gotSessionID string
	err                                 error
}

func (f *fakeLoginer) Login(_ context.Context, email, username, _, sessionID string) (auth.Session, error) {
	f.gotEmail, f.gotUsername, f.gotSessionID = email, username, sessionID
	if f.err != nil {
		return auth.Session{}, f.err
	}
	return auth.Session{
		User:         models.UserInfo{Email: "bob@example.com", Username: "bob"},
		AccessToken:  "access",
		RefreshToken: "refresh",
		SessionID:    "sid-1",
	}, nil
}

var lifetimes = cookies.Lifetimes{AccessToken: time.Minute, RefreshToken: time.Hour}

func do(h http.HandlerFunc, body string, cs ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cs {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestLogin_Success(t *testing.T) {
	loginer := &fakeLoginer{}
	h := New(sl.NewDiscardLogger(), validator.New(), loginer, lifetimes)

	rr := do(h, `{"username":"bob","password":"pw"}`, &http.Cookie{Name: cookies.SessionID, Value: "old-sid"})

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "bob", loginer.gotUsername)
	assert.Equal(t, "old-sid", loginer.gotSessionID)

	var body Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "OK", body.Status)
	assert.Equal(t, "bob", body.User.Username)

	names := make([]string, 0, 3)
	for _, c := range rr.Result().Cookies() {
		names = append(names, c.Name)
	}
	assert.ElementsMatch(t, []string{cookies.AccessToken, cookies.RefreshToken, cookies.SessionID}, names)
}

func TestLogin_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantError  string
	}{
		{name: "malformed body", body: `{`, wantStatus: http.StatusBadRequest, wantError: "Failed to decode request"},
		{name: "no identifier", body: `{"password":"pw"}`, wantStatus: http.StatusBadRequest, wantError: "field Username is required when Email is missing"},
		{name: "bad email", body: `{"email":"nope","password":"pw"}`, wantStatus: http.StatusBadRequest, wantError: "field Email is not a valid email"},
		{name: "invalid credentials", body: `{"email":"a@x.com","password":"pw"}`, err: auth.ErrInvalidCredentials, wantStatus: http.StatusBadRequest, wantError: "Invalid credentials"},
		{name: "unverified", body: `{"email":"a@x.com","password":"pw"}`, err: auth.ErrEmailNotVerified, wantStatus: http.StatusForbidden, wantError: "email is not verified"},
		{name: "internal", body: `{"email":"a@x.com","password":"pw"}`, err: assert.AnError, wantStatus: http.StatusInternalServerError, wantError: "Internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(sl.NewDiscardLogger(), validator.New(), &fakeLoginer{err: tt.err}, lifetimes)

			rr := do(h, tt.body)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.wantError)
			assert.Empty(t, rr.Result().Cookies())
		})
	}
}
