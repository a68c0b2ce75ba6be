package verify

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

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
	User models.UserInfo `json:"user"`
}

type EmailVerifier interface {
	VerifyEmail(ctx context.Context, token string) (auth.Session, error)
}

// New confirms the email address holding the {token} path parameter and logs the user in.
func New(
	log *slog.Logger,
	verifier EmailVerifier,
	lifetimes cookies.Lifetimes,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.verify.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		token := chi.URLParam(r, "token")
		if token == "" {
			log.Warn("missing verification token")

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Token is missing."))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		s, err := verifier.VerifyEmail(ctx, token)
		if err != nil {
			if errors.Is(err, storage.ErrUserNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("User not found"))

				return
			}

			log.Error("failed to verify email", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		cookies.SetAll(w, lifetimes, s.AccessToken, s.RefreshToken, s.SessionID)

		log.Info("email verified successfully")

		ResponseOK(w, r, s.User)
	}
}

func ResponseOK(w http.ResponseWriter, r *http.Request, user models.UserInfo) {
	render.JSON(w, r, Response{
		Response: resp.OK(),
		User:     user,
	})
}
