package usergames

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"gametrack/internal/games"
	browsegames "gametrack/internal/http_server/handlers/browse_games"
	resp "gametrack/internal/lib/api/response"
	sl "gametrack/internal/lib/logger"
	"gametrack/internal/middleware/requireauth"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
	games.UserGames
}

type GameLister interface {
	UserGames(ctx context.Context, userID int64, ids []int64) (games.UserGames, error)
}

// New returns catalog data for the caller's games. gamesIds may be repeated or comma
// separated to restrict the lookup.
func New(log *slog.Logger, lister GameLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.usergames.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		userID, _ := requireauth.UserID(r.Context())

		ids, err := browsegames.ParseIDs(strings.Join(r.URL.Query()["gamesIds"], ","), "gamesIds")
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error(err.Error()))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		result, err := lister.UserGames(ctx, userID, ids)
		if err != nil {
			log.Error("failed to load user games", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		render.JSON(w, r, Response{
			Response:  resp.OK(),
			UserGames: result,
		})
	}
}
