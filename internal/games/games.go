// Package games tracks which catalog games a user played or liked.
package games

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gametrack/internal/catalog/igdb"
	sl "gametrack/internal/lib/logger"
	"gametrack/internal/models"
)

var ErrInvalidStatus = errors.New("invalid status")

const (
	StatusPlayed    = "played"
	StatusLiked     = "liked"
	StatusDisliked  = "disliked"
	StatusNonPlayed = "non-played"
)

type Catalog interface {
	Games(ctx context.Context, query string) ([]models.Game, error)
}

type GameStore interface {
	UserGames(ctx context.Context, userID int64) ([]models.UserGame, error)
	SaveUserGame(ctx context.Context, userID int64, game models.UserGame) error
}

type Service struct {
	log     *slog.Logger
	store   GameStore
	catalog Catalog
}

func New(log *slog.Logger, store GameStore, catalog Catalog) *Service {
	return &Service{log: log, store: store, catalog: catalog}
}

// Browse lists catalog games the user has not marked yet.
func (s *Service) Browse(ctx context.Context, userID int64, f igdb.BrowseFilter) ([]models.Game, error) {
	const op = "games.Browse"

	marked, err := s.store.UserGames(ctx, userID)
	if err != nil {
		s.log.Error("failed to load user games", slog.String("op", op), sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	games, err := s.catalog.Games(ctx, igdb.BrowseQuery(f, GameIDs(marked)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return games, nil
}

// MarkGame records status for gameID. changed is false when the game already had that status
// and nothing was written.
func (s *Service) MarkGame(ctx context.Context, userID, gameID int64, status string) (models.UserGame, bool, error) {
	const op = "games.MarkGame"

	log := s.log.With(slog.String("op", op), slog.Int64("uid", userID), slog.Int64("game_id", gameID))

	played, liked, value, err := statusAction(status)
	if err != nil {
		return models.UserGame{}, false, err
	}

	owned, err := s.store.UserGames(ctx, userID)
	if err != nil {
		log.Error("failed to load user games", sl.Err(err))
		return models.UserGame{}, false, fmt.Errorf("%s: %w", op, err)
	}

	game := models.UserGame{GameID: gameID}
	for _, g := range owned {
		if g.GameID == gameID {
			game = g
			break
		}
	}

	current := game.Liked
	if played {
		current = game.Played
	}
	if current != nil && *current == value {
		return game, false, nil
	}

	update := models.UserGame{GameID: gameID}
	if played {
		game.Played = &value
		update.Played = &value
	}
	if liked {
		game.Liked = &value
		update.Liked = &value
	}

	if err := s.store.SaveUserGame(ctx, userID, update); err != nil {
		log.Error("failed to save user game", sl.Err(err))
		return models.UserGame{}, false, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("game status updated", slog.String("status", status))

	return game, true, nil
}

type UserGames struct {
	Games         []models.Game `json:"games"`
	LikedGameIDs  []int64       `json:"likedGamesIds"`
	PlayedGameIDs []int64       `json:"playedGamesIds"`
}

// UserGames returns catalog data for the user's games, or only for ids when given.
func (s *Service) UserGames(ctx context.Context, userID int64, ids []int64) (UserGames, error) {
	const op = "games.UserGames"

	owned, err := s.store.UserGames(ctx, userID)
	if err != nil {
		s.log.Error("failed to load user games", slog.String("op", op), sl.Err(err))
		return UserGames{}, fmt.Errorf("%s: %w", op, err)
	}

	result := UserGames{
		Games:         []models.Game{},
		LikedGameIDs:  FilterIDs(owned, func(g models.UserGame) *bool { return g.Liked }),
		PlayedGameIDs: FilterIDs(owned, func(g models.UserGame) *bool { return g.Played }),
	}

	if len(owned) == 0 {
		return result, nil
	}

	if len(ids) == 0 {
		ids = GameIDs(owned)
	}

	games, err := s.catalog.Games(ctx, igdb.ByIDsQuery(ids, igdb.UserGamesLimit))
	if err != nil {
		return UserGames{}, fmt.Errorf("%s: %w", op, err)
	}
	result.Games = games

	return result, nil
}

func statusAction(status string) (played, liked, value bool, err error) {
	switch status {
	case StatusPlayed:
		return true, false, true, nil
	case StatusNonPlayed:
		return true, false, false, nil
	case StatusLiked:
		return false, true, true, nil
	case StatusDisliked:
		return false, true, false, nil
	default:
		return false, false, false, ErrInvalidStatus
	}
}

func GameIDs(games []models.UserGame) []int64 {
	ids := make([]int64, 0, len(games))
	for _, g := range games {
		ids = append(ids, g.GameID)
	}
	return ids
}

// FilterIDs returns the ids of games whose selected flag is set to true.
func FilterIDs(games []models.UserGame, flag func(models.UserGame) *bool) []int64 {
	ids := make([]int64, 0)
	for _, g := range games {
		if v := flag(g); v != nil && *v {
			ids = append(ids, g.GameID)
		}
	}
	return ids
}
