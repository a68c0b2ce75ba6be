// Package cookies sets and clears the three session cookies shared by the auth handlers.
package cookies

import (
	"net/http"
	"time"
)

const (
	AccessToken  = "accessToken"
	RefreshToken = "refreshToken"
	SessionID    = "sessionId"

	RefreshTokenPath = "/api/auth/refresh-token"
)

// Lifetimes are the Max-Age values for the token cookies.
type Lifetimes struct {
	AccessToken  time.Duration
	RefreshToken time.Duration
}

func SetAccessToken(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, newCookie(AccessToken, token, "/", seconds(ttl)))
}

func SetRefreshToken(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, newCookie(RefreshToken, token, RefreshTokenPath, seconds(ttl)))
}

// SetSessionID sets a session cookie without Max-Age.
func SetSessionID(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, newCookie(SessionID, sessionID, "/", 0))
}

func SetAll(w http.ResponseWriter, lt Lifetimes, accessToken, refreshToken, sessionID string) {
	SetAccessToken(w, accessToken, lt.AccessToken)
	SetRefreshToken(w, refreshToken, lt.RefreshToken)
	SetSessionID(w, sessionID)
}

// ClearAll expires every session cookie on the paths they were set with.
func ClearAll(w http.ResponseWriter) {
	http.SetCookie(w, newCookie(AccessToken, "", "/", -1))
	http.SetCookie(w, newCookie(RefreshToken, "", RefreshTokenPath, -1))
	http.SetCookie(w, newCookie(SessionID, "", "/", -1))
}

// Value returns the named cookie's value or "" when it is absent.
func Value(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func newCookie(name, value, path string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	}
}

func seconds(d time.Duration) int {
	s := int(d / time.Second)
	if s <= 0 {
		return -1
	}
	return s
}
