package friends

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gametrack/internal/catalog/igdb"
	"gametrack/internal/games"
	sl "gametrack/internal/lib/logger"
	"gametrack/internal/models"
	"gametrack/internal/storage"
)

var (
	ErrSelfFriendship  = errors.New("cannot befriend yourself")
	ErrNotAddressee    = errors.New("only the addressee can accept a friendship")
	ErrAlreadyAccepted = errors.New("friendship already accepted")
	ErrNotAccepted     = errors.New("friendship not accepted")
)

type Store interface {
	UserByID(ctx context.Context, id int64) (models.User, error)
	SearchUsers(ctx context.Context, q string, excludeID int64) ([]models.UserInfo, error)
	CreateFriendship(ctx context.Context, requesterID, addresseeID int64) (models.Friendship, error)
	FriendshipByID(ctx context.Context, id int64) (models.Friendship, error)
	FriendshipByUsers(ctx context.Context, userID1, userID2 int64) (models.Friendship, error)
	SetFriendshipStatus(ctx context.Context, id int64, status models.FriendshipStatus) (models.Friendship, error)
	Friendships(ctx context.Context, userID int64) ([]models.FriendshipView, error)
	UserGames(ctx context.Context, userID int64) ([]models.UserGame, error)
}

type Service struct {
	log     *slog.Logger
	store   Store
	catalog games.Catalog
}

func New(log *slog.Logger, store Store, catalog games.Catalog) *Service {
	return &Service{log: log, store: store, catalog: catalog}
}

func (s *Service) SearchUsers(ctx context.Context, userID int64, q string) ([]models.UserInfo, error) {
	const op = "friends.SearchUsers"

	users, err := s.store.SearchUsers(ctx, q, userID)
	if err != nil {
		s.log.Error("failed to search users", slog.String("op", op), sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return users, nil
}

// Create sends a friend request from userID to friendID.
func (s *Service) Create(ctx context.Context, userID, friendID int64) (models.Friendship, error) {
	const op = "friends.Create"

	log := s.log.With(slog.String("op", op), slog.Int64("uid", userID))

	if userID == friendID {
		return models.Friendship{}, ErrSelfFriendship
	}

	if _, err := s.store.UserByID(ctx, friendID); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.Friendship{}, storage.ErrUserNotFound
		}

		log.Error("failed to load friend", sl.Err(err))
		return models.Friendship{}, fmt.Errorf("%s: %w", op, err)
	}

	_, err := s.store.FriendshipByUsers(ctx, userID, friendID)
	switch {
	case err == nil:
		return models.Friendship{}, storage.ErrFriendshipExists
	case !errors.Is(err, storage.ErrFriendshipNotFound):
		log.Error("failed to look up friendship", sl.Err(err))
		return models.Friendship{}, fmt.Errorf("%s: %w", op, err)
	}

	f, err := s.store.CreateFriendship(ctx, userID, friendID)
	if err != nil {
		if errors.Is(err, storage.ErrFriendshipExists) {
			return models.Friendship{}, storage.ErrFriendshipExists
		}

		log.Error("failed to create friendship", sl.Err(err))
		return models.Friendship{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("friend request sent", slog.Int64("friendship_id", f.ID))

	return f, nil
}

// Accept marks a pending request as accepted. Only the addressee may accept.
func (s *Service) Accept(ctx context.Context, userID, friendshipID int64) (models.Friendship, error) {
	const op = "friends.Accept"

	f, err := s.store.FriendshipByID(ctx, friendshipID)
	if err != nil {
		if errors.Is(err, storage.ErrFriendshipNotFound) {
			return models.Friendship{}, storage.ErrFriendshipNotFound
		}

		return models.Friendship{}, fmt.Errorf("%s: %w", op, err)
	}

	if f.UserID2 != userID {
		return models.Friendship{}, ErrNotAddressee
	}

	if f.Status == models.FriendshipAccepted {
		return models.Friendship{}, ErrAlreadyAccepted
	}

	f, err = s.store.SetFriendshipStatus(ctx, friendshipID, models.FriendshipAccepted)
	if err != nil {
		return models.Friendship{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("friendship accepted", slog.String("op", op), slog.Int64("friendship_id", f.ID))

	return f, nil
}

func (s *Service) List(ctx context.Context, userID int64) ([]models.FriendshipView, error) {
	const op = "friends.List"

	views, err := s.store.Friendships(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return views, nil
}

type FriendGames struct {
	Friend        models.UserInfo `json:"friend"`
	LikedGameIDs  []int64         `json:"gamesLikedByFriend"`
	PlayedGameIDs []int64         `json:"gamesPlayedByFriend"`
	Games         []models.Game   `json:"games"`
}

// FriendGames shows a friend's game activity. The friendship must exist and be accepted.
func (s *Service) FriendGames(ctx context.Context, userID, friendID int64) (FriendGames, error) {
	const op = "friends.FriendGames"

	friend, err := s.store.UserByID(ctx, friendID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return FriendGames{}, storage.ErrUserNotFound
		}

		return FriendGames{}, fmt.Errorf("%s: %w", op, err)
	}

	f, err := s.store.FriendshipByUsers(ctx, userID, friendID)
	if err != nil {
		if errors.Is(err, storage.ErrFriendshipNotFound) {
			return FriendGames{}, storage.ErrFriendshipNotFound
		}

		return FriendGames{}, fmt.Errorf("%s: %w", op, err)
	}

	if f.Status != models.FriendshipAccepted {
		return FriendGames{}, ErrNotAccepted
	}

	owned, err := s.store.UserGames(ctx, friendID)
	if err != nil {
		return FriendGames{}, fmt.Errorf("%s: %w", op, err)
	}

	info := friend.Info()
	info.ID = friend.ID

	result := FriendGames{
		Friend:        info,
		LikedGameIDs:  games.FilterIDs(owned, func(g models.UserGame) *bool { return g.Liked }),
		PlayedGameIDs: games.FilterIDs(owned, func(g models.UserGame) *bool { return g.Played }),
		Games:         []models.Game{},
	}

	ids := unionIDs(result.PlayedGameIDs, result.LikedGameIDs)
	if len(ids) == 0 {
		return result, nil
	}

	catalogGames, err := s.catalog.Games(ctx, igdb.ByIDsQuery(ids, igdb.FriendGameLimit))
	if err != nil {
		return FriendGames{}, fmt.Errorf("%s: %w", op, err)
	}
	result.Games = catalogGames

	return result, nil
}

func unionIDs(a, b []int64) []int64 {
	seen := make(map[int64]struct{}, len(a)+len(b))
	out := make([]int64, 0, len(a)+len(b))
	for _, ids := range [][]int64{a, b} {
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
