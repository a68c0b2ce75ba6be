package logout

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"gametrack/internal/http_server/cookies"
	resp "gametrack/internal/lib/api/response"
	sl "gametrack/internal/lib/logger"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
}

type SessionRevoker interface {
	Logout(ctx context.Context, accessToken, sessionID string) error
}

// New clears the session cookies. Server-side revocation is attempted first, and its
// failure never keeps the client logged in.
func New(
	log *slog.Logger,
	revoker SessionRevoker,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.logout.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		err := revoker.Logout(ctx,
			cookies.Value(r, cookies.AccessToken),
			cookies.Value(r, cookies.SessionID),
		)
		if err != nil {
			log.Error("failed to revoke session", sl.Err(err))
		}

		cookies.ClearAll(w)

		log.Info("user logged out")

		ResponseOK(w, r)
	}
}

func ResponseOK(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, Response{
		Response: resp.OK(),
	})
}
