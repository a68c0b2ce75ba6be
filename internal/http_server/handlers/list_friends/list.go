package listfriends

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
)

type Response struct {
	resp.Response
	Friends []models.FriendshipView `json:"friends"`
}

type FriendLister interface {
	List(ctx context.Context, userID int64) ([]models.FriendshipView, error)
}

func New(log *slog.Logger, lister FriendLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.listfriends.New"

		userID, _ := requireauth.UserID(r.Context())

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		friends, err := lister.List(ctx, userID)
		if err != nil {
			log.Error("failed to list friends",
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
				sl.Err(err),
			)

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		render.JSON(w, r, Response{
			Response: resp.OK(),
			Friends:  friends,
		})
	}
}
