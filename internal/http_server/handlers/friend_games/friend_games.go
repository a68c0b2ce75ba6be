package friendgames

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
	"gametrack/internal/storage"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
	friends.FriendGames
}

type FriendGamesProvider interface {
	FriendGames(ctx context.Context, userID, friendID int64) (friends.FriendGames, error)
}

func New(log *slog.Logger, provider FriendGamesProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.friendgames.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		userID, _ := requireauth.UserID(r.Context())

		friendID, err := strconv.ParseInt(chi.URLParam(r, "friendId"), 10, 64)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Friend ID is missing."))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		result, err := provider.FriendGames(ctx, userID, friendID)
		if err != nil {
			switch {
			case errors.Is(err, storage.ErrUserNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("Friend not found."))
			case errors.Is(err, storage.ErrFriendshipNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("Friendship not found."))
			case errors.Is(err, friends.ErrNotAccepted):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("Friendship not accepted."))
			default:
				log.Error("failed to load friend games", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("Internal error"))
			}

			return
		}

		render.JSON(w, r, Response{
			Response:    resp.OK(),
			FriendGames: result,
		})
	}
}
