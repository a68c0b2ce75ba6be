package createfriendship

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"gametrack/internal/friends"
	resp "gametrack/internal/lib/api/response"
	sl "gametrack/internal/lib/logger"
	"gametrack/internal/middleware/requireauth"
	"gametrack/internal/models"
	"gametrack/internal/storage"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	FriendID int64 `json:"friendId" validate:"required"`
}

type Response struct {
	resp.Response
	Friendship models.Friendship `json:"friendship"`
}

type FriendshipCreator interface {
	Create(ctx context.Context, userID, friendID int64) (models.Friendship, error)
}

func New(log *slog.Logger, validate *validator.Validate, creator FriendshipCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.createfriendship.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		userID, _ := requireauth.UserID(r.Context())

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Failed to decode request"))

			return
		}

		if err := validate.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		f, err := creator.Create(ctx, userID, req.FriendID)
		if err != nil {
			switch {
			case errors.Is(err, friends.ErrSelfFriendship):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("You cannot be friends with yourself."))
			case errors.Is(err, storage.ErrUserNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("Friend not found."))
			case errors.Is(err, storage.ErrFriendshipExists):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("Friendship already exists."))
			default:
				log.Error("failed to create friendship", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("Internal error"))
			}

			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, Response{
			Response:   resp.OK(),
			Friendship: f,
		})
	}
}
