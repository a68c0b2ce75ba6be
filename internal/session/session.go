// Package session binds a logical client session to a single live refresh token record.
package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sl "gametrack/internal/lib/logger"
	"gametrack/internal/models"
	"gametrack/internal/storage"

	"github.com/google/uuid"
)

var ErrInvalidRefreshToken = errors.New("invalid refresh token")

type TokenIssuer interface {
	IssueAccessToken(userID int64) (string, error)
	IssueRefreshToken(userID int64) (string, error)
	VerifyRefreshToken(token string) (int64, error)
	RefreshTTL() time.Duration
}

type RefreshTokenStore interface {
	UpsertRefreshToken(ctx context.Context, sessionID string, candidate models.RefreshToken, now time.Time) (models.RefreshToken, error)
	RefreshToken(ctx context.Context, userID int64, sessionID string) (models.RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, userID int64, sessionID string) error
	DeleteSessionRefreshTokens(ctx context.Context, sessionID string) (int64, error)
	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

type Manager struct {
	log          *slog.Logger
	tokens       TokenIssuer
	store        RefreshTokenStore
	now          func() time.Time
	newSessionID func() string
}

func New(log *slog.Logger, tokens TokenIssuer, store RefreshTokenStore) *Manager {
	return &Manager{
		log:          log,
		tokens:       tokens,
		store:        store,
		now:          time.Now,
		newSessionID: uuid.NewString,
	}
}

// GetOrCreateRefreshToken returns the active record for (userID, sessionID) unchanged. When there
// is none, a refresh token is minted and stored under a freshly generated session id; a
// client-supplied id that has no active record is never reused.
func (m *Manager) GetOrCreateRefreshToken(ctx context.Context, userID int64, sessionID string) (models.RefreshToken, error) {
	const op = "session.GetOrCreateRefreshToken"

	log := m.log.With(slog.String("op", op), slog.Int64("uid", userID))

	if sessionID != "" {
		rt, err := m.store.RefreshToken(ctx, userID, sessionID)
		switch {
		case err == nil && rt.IsActive(m.now()):
			return rt, nil
		case err != nil && !errors.Is(err, storage.ErrRefreshTokenNotFound):
			log.Error("failed to load refresh token", sl.Err(err))
			return models.RefreshToken{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	// The candidate is only kept when the upsert finds no active record for sessionID, which also
	// covers a concurrent login that stored one after the lookup above.
	token, err := m.tokens.IssueRefreshToken(userID)
	if err != nil {
		log.Error("failed to issue refresh token", sl.Err(err))
		return models.RefreshToken{}, fmt.Errorf("%s: %w", op, err)
	}

	now := m.now()
	candidate := models.RefreshToken{
		UserID:     userID,
		Token:      token,
		SessionID:  m.newSessionID(),
		ExpiryDate: now.Add(m.tokens.RefreshTTL()),
	}

	rt, err := m.store.UpsertRefreshToken(ctx, sessionID, candidate, now)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found")
			return models.RefreshToken{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}

		log.Error("failed to store refresh token", sl.Err(err))
		return models.RefreshToken{}, fmt.Errorf("%s: %w", op, err)
	}

	if rt.SessionID == candidate.SessionID {
		log.Debug("new session started")
	}

	return rt, nil
}

// RotateAccessToken issues a new access token for a refresh token that verifies cryptographically
// and matches the stored, unexpired record of its session. The refresh token itself is kept.
func (m *Manager) RotateAccessToken(ctx context.Context, refreshToken, sessionID string) (string, int64, error) {
	const op = "session.RotateAccessToken"

	log := m.log.With(slog.String("op", op))

	userID, err := m.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		log.Info("refresh token rejected", sl.Err(err))
		return "", 0, ErrInvalidRefreshToken
	}

	rt, err := m.store.RefreshToken(ctx, userID, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrRefreshTokenNotFound) {
			log.Info("no refresh token for session", slog.Int64("uid", userID))
			return "", 0, ErrInvalidRefreshToken
		}

		log.Error("failed to load refresh token", sl.Err(err))
		return "", 0, fmt.Errorf("%s: %w", op, err)
	}

	if subtle.ConstantTimeCompare([]byte(rt.Token), []byte(refreshToken)) != 1 || !rt.IsActive(m.now()) {
		log.Info("refresh token does not match session", slog.Int64("uid", userID))
		return "", 0, ErrInvalidRefreshToken
	}

	accessToken, err := m.tokens.IssueAccessToken(userID)
	if err != nil {
		log.Error("failed to issue access token", sl.Err(err))
		return "", 0, fmt.Errorf("%s: %w", op, err)
	}

	return accessToken, userID, nil
}

// RevokeSession removes the stored refresh token record of the session.
func (m *Manager) RevokeSession(ctx context.Context, userID int64, sessionID string) error {
	const op = "session.RevokeSession"

	if err := m.store.DeleteRefreshToken(ctx, userID, sessionID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	m.log.Info("session revoked", slog.String("op", op), slog.Int64("uid", userID))

	return nil
}

// RevokeSessionByID removes the session's record without knowing its owner. Session ids are
// generated server side, so the id alone identifies the session.
func (m *Manager) RevokeSessionByID(ctx context.Context, sessionID string) error {
	const op = "session.RevokeSessionByID"

	n, err := m.store.DeleteSessionRefreshTokens(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	m.log.Info("session revoked", slog.String("op", op), slog.Int64("records", n))

	return nil
}

func (m *Manager) PruneExpired(ctx context.Context) (int64, error) {
	const op = "session.PruneExpired"

	n, err := m.store.DeleteExpiredRefreshTokens(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

// RunPruner deletes expired refresh token records every interval until ctx is done.
func (m *Manager) RunPruner(ctx context.Context, interval time.Duration) {
	const op = "session.RunPruner"

	log := m.log.With(slog.String("op", op))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := m.PruneExpired(ctx)
			if err != nil {
				log.Error("failed to prune expired refresh tokens", sl.Err(err))
				continue
			}
			if n > 0 {
				log.Info("expired refresh tokens pruned", slog.Int64("count", n))
			}
		}
	}
}
