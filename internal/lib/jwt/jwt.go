// Package jwt issues and verifies the access and refresh tokens of the service.
//
// Both token kinds carry the same claims ({userId, exp}) but are signed with
// independent secrets, so a leaked access secret cannot mint refresh tokens.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid signature or expired token")

type Claims struct {
	jwt.RegisteredClaims
	UserID int64 `json:"userId"`
}

type Manager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *Manager {
	return &Manager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

func (m *Manager) AccessTTL() time.Duration  { return m.accessTTL }
func (m *Manager) RefreshTTL() time.Duration { return m.refreshTTL }

func (m *Manager) IssueAccessToken(userID int64) (string, error) {
	const op = "jwt.IssueAccessToken"

	token, err := m.sign(userID, m.accessSecret, m.accessTTL)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return token, nil
}

func (m *Manager) IssueRefreshToken(userID int64) (string, error) {
	const op = "jwt.IssueRefreshToken"

	token, err := m.sign(userID, m.refreshSecret, m.refreshTTL)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return token, nil
}

func (m *Manager) VerifyAccessToken(token string) (int64, error) {
	claims, err := m.parse(token, m.accessSecret)
	if err != nil {
		return 0, err
	}

	return claims.UserID, nil
}

func (m *Manager) VerifyRefreshToken(token string) (int64, error) {
	claims, err := m.parse(token, m.refreshSecret)
	if err != nil {
		return 0, err
	}

	return claims.UserID, nil
}

// ParseAccessToken returns the full claims of a valid access token.
func (m *Manager) ParseAccessToken(token string) (*Claims, error) {
	return m.parse(token, m.accessSecret)
}

func (m *Manager) sign(userID int64, secret []byte, ttl time.Duration) (string, error) {
	now := m.now()

	// NumericDate has one-second resolution, so the TTL is truncated to whole seconds here.
	ttlSeconds := int64(ttl / time.Second)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(time.Unix(now.Unix()+ttlSeconds, 0)),
		},
		UserID: userID,
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (m *Manager) parse(tokenStr string, secret []byte) (*Claims, error) {
	const op = "jwt.parse"

	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%s: unexpected signing method %v", op, t.Header["alg"])
		}
		return secret, nil
	},
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidToken, err)
	}

	if !token.Valid || claims.UserID == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return claims, nil
}
