// Package twitch keeps the app access token used to call the IGDB catalog.
//
// The token lives in a single process-wide cell. One refresher goroutine writes it;
// readers load the latest value without taking a lock.
package twitch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	sl "gametrack/internal/lib/logger"
)

var ErrNoToken = errors.New("catalog access token not available")

type Token struct {
	AccessToken string
	Expiry      time.Time
}

type TokenSource struct {
	log          *slog.Logger
	client       *http.Client
	tokenURL     string
	clientID     string
	clientSecret string
	current      atomic.Pointer[Token]
	now          func() time.Time
}

func New(log *slog.Logger, client *http.Client, tokenURL, clientID, clientSecret string) *TokenSource {
	return &TokenSource{
		log:          log,
		client:       client,
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		now:          time.Now,
	}
}

// Token returns the latest access token, or ErrNoToken if none has been fetched or it expired.
func (s *TokenSource) Token() (string, error) {
	t := s.current.Load()
	if t == nil || !t.Expiry.After(s.now()) {
		return "", ErrNoToken
	}

	return t.AccessToken, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// Refresh fetches a new client-credentials token and publishes it.
func (s *TokenSource) Refresh(ctx context.Context) error {
	const op = "twitch.Refresh"

	q := url.Values{}
	q.Set("client_id", s.clientID)
	q.Set("client_secret", s.clientSecret)
	q.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %s", op, resp.Status)
	}

	var body tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", op, err)
	}

	if body.AccessToken == "" {
		return fmt.Errorf("%s: empty access token", op)
	}

	s.current.Store(&Token{
		AccessToken: body.AccessToken,
		Expiry:      s.now().Add(time.Duration(body.ExpiresIn) * time.Second),
	})

	return nil
}

// Run refreshes the token every interval until ctx is done. The first refresh happens
// synchronously so callers can fail fast on bad credentials.
func (s *TokenSource) Run(ctx context.Context, interval time.Duration) error {
	const op = "twitch.Run"

	log := s.log.With(slog.String("op", op))

	if err := s.Refresh(ctx); err != nil {
		return err
	}

	log.Info("catalog access token fetched")

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.Refresh(ctx); err != nil {
					log.Error("failed to refresh catalog access token", sl.Err(err))
					continue
				}
				log.Info("catalog access token refreshed")
			}
		}
	}()

	return nil
}
