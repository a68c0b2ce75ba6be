package markgame

import (
	"context"
	"fmt"
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
	GameID int64  `json:"gameId" validate:"required"`
	Status string `json:"status" validate:"required,oneof=played liked disliked non-played"`
}

type Response struct {
	resp.Response
	Message string           `json:"message"`
	Game    *models.UserGame `json:"game,omitempty"`
}

type GameMarker interface {
	MarkGame(ctx context.Context, userID, gameID int64, status string) (models.UserGame, bool, error)
}

func New(log *slog.Logger, validate *validator.Validate, marker GameMarker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.markgame.New"

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

		game, changed, err := marker.MarkGame(ctx, userID, req.GameID, req.Status)
		if err != nil {
			log.Error("failed to mark game", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Failed to update the game status"))

			return
		}

		if !changed {
			render.JSON(w, r, Response{
				Response: resp.OK(),
				Message:  fmt.Sprintf("Game already marked as %s", req.Status),
			})

			return
		}

		render.JSON(w, r, Response{
			Response: resp.OK(),
			Message:  "Game status updated successfully",
			Game:     &game,
		})
	}
}
