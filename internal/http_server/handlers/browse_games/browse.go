package browsegames

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gametrack/internal/catalog/igdb"
	resp "gametrack/internal/lib/api/response"
	sl "gametrack/internal/lib/logger"
	"gametrack/internal/middleware/requireauth"
	"gametrack/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
	Games []models.Game `json:"games"`
}

type GameBrowser interface {
	Browse(ctx context.Context, userID int64, f igdb.BrowseFilter) ([]models.Game, error)
}

// New lists catalog games the caller has not marked yet. Query parameters:
// page, console, genre, company (comma separated ids), startYear and endYear.
func New(log *slog.Logger, browser GameBrowser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.browsegames.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		userID, _ := requireauth.UserID(r.Context())

		f, err := ParseFilter(r)
		if err != nil {
			log.Info("invalid query", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error(err.Error()))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		games, err := browser.Browse(ctx, userID, f)
		if err != nil {
			log.Error("failed to browse games", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		render.JSON(w, r, Response{
			Response: resp.OK(),
			Games:    games,
		})
	}
}

func ParseFilter(r *http.Request) (igdb.BrowseFilter, error) {
	q := r.URL.Query()

	var (
		f   igdb.BrowseFilter
		err error
	)

	if f.Page, err = parseInt(q.Get("page"), "page"); err != nil {
		return igdb.BrowseFilter{}, err
	}
	if f.StartYear, err = parseInt(q.Get("startYear"), "startYear"); err != nil {
		return igdb.BrowseFilter{}, err
	}
	if f.EndYear, err = parseInt(q.Get("endYear"), "endYear"); err != nil {
		return igdb.BrowseFilter{}, err
	}
	if f.Platforms, err = ParseIDs(q.Get("console"), "console"); err != nil {
		return igdb.BrowseFilter{}, err
	}
	if f.Genres, err = ParseIDs(q.Get("genre"), "genre"); err != nil {
		return igdb.BrowseFilter{}, err
	}
	if f.Franchises, err = ParseIDs(q.Get("company"), "company"); err != nil {
		return igdb.BrowseFilter{}, err
	}

	return f, nil
}

// ParseIDs parses a comma separated list of integer ids. An empty string yields nil.
func ParseIDs(s, field string) ([]int64, error) {
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("field %s must be a list of integers", field)
		}
		ids = append(ids, id)
	}

	return ids, nil
}

func parseInt(s, field string) (int, error) {
	if s == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("field %s must be an integer", field)
	}

	return n, nil
}
