package searchusers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	resp "gametrack/internal/lib/api/response"
	sl "gametrack/internal/lib/logger"
	"gametrack/internal/middleware/requireauth"
	"gametrack/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	Query string `validate:"required"`
}

type Response struct {
	resp.Response
	Users []models.UserInfo `json:"users"`
}

type UserSearcher interface {
	SearchUsers(ctx context.Context, userID int64, q string) ([]models.UserInfo, error)
}

func New(log *slog.Logger, validate *validator.Validate, searcher UserSearcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.searchusers.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		userID, _ := requireauth.UserID(r.Context())

		req := Request{Query: r.URL.Query().Get("q")}
		if err := validate.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		users, err := searcher.SearchUsers(ctx, userID, req.Query)
		if err != nil {
			log.Error("failed to search users", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		render.JSON(w, r, Response{
			Response: resp.OK(),
			Users:    users,
		})
	}
}
