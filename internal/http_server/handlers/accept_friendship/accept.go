package acceptfriendship

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"gametrack/internal/friends"
	resp "gametrack/internal/lib/api/response"
	sl "gametrack/internal/lib/logger"
	"gametrack/internal/middleware/requireauth"
	"gametrack/internal/models"
	"gametrack/internal/storage"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
	Friendship models.Friendship `json:"friendship"`
}

type FriendshipAccepter interface {
	Accept(ctx context.Context, userID, friendshipID int64) (models.Friendship, error)
}

func New(log *slog.Logger, accepter FriendshipAccepter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.acceptfriendship.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		userID, _ := requireauth.UserID(r.Context())

		friendshipID, err := strconv.ParseInt(chi.URLParam(r, "friendshipId"), 10, 64)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Friendship ID is missing."))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		f, err := accepter.Accept(ctx, userID, friendshipID)
		if err != nil {
			switch {
			case errors.Is(err, storage.ErrFriendshipNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("Friendship not found."))
			case errors.Is(err, friends.ErrNotAddressee):
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, resp.Error("You are not authorized to accept this friendship."))
			case errors.Is(err, friends.ErrAlreadyAccepted):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("Friendship already accepted."))
			default:
				log.Error("failed to accept friendship", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("Internal error"))
			}

			return
		}

		render.JSON(w, r, Response{
			Response:   resp.OK(),
			Friendship: f,
		})
	}
}
