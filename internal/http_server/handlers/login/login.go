package login

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

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

// Request identifies the user by email or by username.
type Request struct {
	Email    string `json:"email" validate:"omitempty,email"`
	Username string `json:"username" validate:"required_without=Email"`
	Pass     string `json:"password" validate:"required"`
}

type Response struct {
	resp.Response
	User models.UserInfo `json:"user"`
}

type UserLoginer interface {
	Login(ctx context.Context, email, username, pass, sessionID string) (auth.Session, error)
}

func New(
	log *slog.Logger,
	validate *validator.Validate,
	loginer UserLoginer,
	lifetimes cookies.Lifetimes,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.login.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			log.Error("Failed to decode request body", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Failed to decode request"))

			return
		}

		log.Info("Request body decoded")

		if err := validate.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Error("Invalid request", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		sessionID := cookies.Value(r, cookies.SessionID)

		s, err := loginer.Login(ctx, req.Email, req.Username, req.Pass, sessionID)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("Invalid credentials"))

				return
			}
			if errors.Is(err, auth.ErrEmailNotVerified) {
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, resp.Error("email is not verified"))

				return
			}

			log.Error("failed to login user", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		cookies.SetAll(w, lifetimes, s.AccessToken, s.RefreshToken, s.SessionID)

		log.Info("User logged in successfully")

		ResponseOK(w, r, s.User)
	}
}

func ResponseOK(w http.ResponseWriter, r *http.Request, user models.UserInfo) {
	render.JSON(w, r, Response{
		Response: resp.OK(),
		User:     user,
	})
}
