package refresh

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"gametrack/internal/auth"
	"gametrack/internal/http_server/cookies"
	resp "gametrack/internal/lib/api/response"
	sl "gametrack/internal/lib/logger"
	"gametrack/internal/models"
	"gametrack/internal/storage"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
	User models.UserInfo `json:"user"`
}

type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken, sessionID string) (string, models.UserInfo, error)
}

// New issues a new access token cookie from the refreshToken and sessionId cookies.
func New(
	log *slog.Logger,
	refresher TokenRefresher,
	accessTokenTTL time.Duration,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.refresh.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		accessToken, user, err := refresher.Refresh(ctx,
			cookies.Value(r, cookies.RefreshToken),
			cookies.Value(r, cookies.SessionID),
		)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrMissingCredentials):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("Refresh token or session ID is missing."))
			case errors.Is(err, auth.ErrInvalidRefreshToken):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("Invalid refresh token."))
			case errors.Is(err, storage.ErrUserNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("User not found"))
			default:
				log.Error("failed to refresh access token", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("Internal error"))
			}

			return
		}

		cookies.SetAccessToken(w, accessToken, accessTokenTTL)

		log.Info("Access token refreshed")

		ResponseOK(w, r, user)
	}
}

func ResponseOK(w http.ResponseWriter, r *http.Request, user models.UserInfo) {
	render.JSON(w, r, Response{
		Response: resp.OK(),
		User:     user,
	})
}
