package requireauth

import (
	"context"
	"log/slog"
	"net/http"

	"gametrack/internal/http_server/cookies"
	resp "gametrack/internal/lib/api/response"
	"gametrack/internal/lib/jwt"
	sl "gametrack/internal/lib/logger"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type ctxKey struct{}

type TokenParser interface {
	ParseAccessToken(token string) (*jwt.Claims, error)
}

type Denylist interface {
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// New rejects requests without a valid, non-revoked accessToken cookie and stores the
// caller's user id in the request context.
func New(log *slog.Logger, tokens TokenParser, denylist Denylist) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			const op = "middleware.requireauth"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			token := cookies.Value(r, cookies.AccessToken)
			if token == "" {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("Access denied. No token provided."))

				return
			}

			claims, err := tokens.ParseAccessToken(token)
			if err != nil {
				log.Debug("access token rejected", sl.Err(err))

				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("Invalid token."))

				return
			}

			revoked, err := denylist.IsAccessTokenRevoked(r.Context(), claims.ID)
			if err != nil {
				log.Error("failed to check access token denylist", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("Internal error"))

				return
			}
			if revoked {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("Invalid token."))

				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), claims.UserID)))
		}

		return http.HandlerFunc(fn)
	}
}

func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserID returns the authenticated user id, or false outside of the middleware.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ctxKey{}).(int64)
	return id, ok
}
