// Package memory is an in-process store with the same contract as the Postgres repository.
// Every method takes the store lock, so the refresh token upsert is atomic per call.
package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"gametrack/internal/models"
	"gametrack/internal/storage"
)

type Store struct {
	mu          sync.RWMutex
	nextUserID  int64
	nextFriends int64
	users       map[int64]models.User
	tokens      map[int64]map[string]models.RefreshToken
	games       map[int64]map[int64]models.UserGame
	friendships map[int64]models.Friendship
	now         func() time.Time
}

func New() *Store {
	return &Store{
		users:       make(map[int64]models.User),
		tokens:      make(map[int64]map[string]models.RefreshToken),
		games:       make(map[int64]map[int64]models.UserGame),
		friendships: make(map[int64]models.Friendship),
		now:         time.Now,
	}
}

func (s *Store) SaveUser(_ context.Context, user models.User) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == user.Email {
			return 0, storage.ErrUserExists
		}
		if user.VerificationToken != nil && u.VerificationToken != nil && *u.VerificationToken == *user.VerificationToken {
			return 0, storage.ErrUserExists
		}
	}

	s.nextUserID++
	user.ID = s.nextUserID
	s.users[user.ID] = user

	return user.ID, nil
}

func (s *Store) User(_ context.Context, email string) (models.User, error) {
	return s.findUser(func(u models.User) bool { return u.Email == email })
}

func (s *Store) UserByUsername(_ context.Context, username string) (models.User, error) {
	return s.findUser(func(u models.User) bool { return u.Username == username })
}

func (s *Store) UserByID(_ context.Context, id int64) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return models.User{}, storage.ErrUserNotFound
	}

	return u, nil
}

func (s *Store) UserByVerificationToken(_ context.Context, token string) (models.User, error) {
	return s.findUser(func(u models.User) bool {
		return u.VerificationToken != nil && *u.VerificationToken == token
	})
}

func (s *Store) findUser(match func(models.User) bool) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		found models.User
		ok    bool
	)
	for _, u := range s.users {
		if match(u) && (!ok || u.ID < found.ID) {
			found, ok = u, true
		}
	}
	if !ok {
		return models.User{}, storage.ErrUserNotFound
	}

	return found, nil
}

func (s *Store) ClearVerificationToken(_ context.Context, userID int64) error {
	return s.updateUser(userID, func(u *models.User) { u.VerificationToken = nil })
}

func (s *Store) SetVerificationToken(_ context.Context, userID int64, token string) error {
	return s.updateUser(userID, func(u *models.User) { u.VerificationToken = &token })
}

func (s *Store) updateUser(userID int64, apply func(*models.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}

	apply(&u)
	s.users[userID] = u

	return nil
}

func (s *Store) SearchUsers(_ context.Context, q string, excludeID int64) ([]models.UserInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q = strings.ToLower(q)

	users := make([]models.UserInfo, 0)
	for _, u := range s.users {
		if u.ID == excludeID {
			continue
		}
		if strings.Contains(strings.ToLower(u.Email), q) || strings.Contains(strings.ToLower(u.Username), q) {
			users = append(users, models.UserInfo{ID: u.ID, Email: u.Email, Username: u.Username})
		}
	}

	slices.SortFunc(users, func(a, b models.UserInfo) int { return strings.Compare(a.Username, b.Username) })

	return users, nil
}

// UpsertRefreshToken returns the active record of sessionID or stores candidate, pruning the
// user's expired records first.
func (s *Store) UpsertRefreshToken(
	_ context.Context,
	sessionID string,
	candidate models.RefreshToken,
	now time.Time,
) (models.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[candidate.UserID]; !ok {
		return models.RefreshToken{}, storage.ErrUserNotFound
	}

	records := s.tokens[candidate.UserID]
	if records == nil {
		records = make(map[string]models.RefreshToken)
		s.tokens[candidate.UserID] = records
	}

	if sessionID != "" {
		if rt, ok := records[sessionID]; ok && rt.IsActive(now) {
			return rt, nil
		}
	}

	for id, rt := range records {
		if !rt.IsActive(now) {
			delete(records, id)
		}
	}

	records[candidate.SessionID] = candidate

	return candidate, nil
}

func (s *Store) RefreshToken(_ context.Context, userID int64, sessionID string) (models.RefreshToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rt, ok := s.tokens[userID][sessionID]
	if !ok {
		return models.RefreshToken{}, storage.ErrRefreshTokenNotFound
	}

	return rt, nil
}

func (s *Store) DeleteRefreshToken(_ context.Context, userID int64, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tokens[userID], sessionID)

	return nil
}

func (s *Store) DeleteSessionRefreshTokens(_ context.Context, sessionID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, records := range s.tokens {
		if _, ok := records[sessionID]; ok {
			delete(records, sessionID)
			n++
		}
	}

	return n, nil
}

func (s *Store) DeleteExpiredRefreshTokens(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, records := range s.tokens {
		for id, rt := range records {
			if !rt.IsActive(now) {
				delete(records, id)
				n++
			}
		}
	}

	return n, nil
}

// RefreshTokenCount reports how many records, active or not, the user holds.
func (s *Store) RefreshTokenCount(userID int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.tokens[userID])
}

func (s *Store) UserGames(_ context.Context, userID int64) ([]models.UserGame, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	games := make([]models.UserGame, 0, len(s.games[userID]))
	for _, g := range s.games[userID] {
		games = append(games, g)
	}

	slices.SortFunc(games, func(a, b models.UserGame) int { return cmp.Compare(a.GameID, b.GameID) })

	return games, nil
}

func (s *Store) SaveUserGame(_ context.Context, userID int64, game models.UserGame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return storage.ErrUserNotFound
	}

	owned := s.games[userID]
	if owned == nil {
		owned = make(map[int64]models.UserGame)
		s.games[userID] = owned
	}

	current, ok := owned[game.GameID]
	if !ok {
		current = models.UserGame{GameID: game.GameID}
	}
	if game.Liked != nil {
		v := *game.Liked
		current.Liked = &v
	}
	if game.Played != nil {
		v := *game.Played
		current.Played = &v
	}
	owned[game.GameID] = current

	return nil
}

func (s *Store) CreateFriendship(_ context.Context, requesterID, addresseeID int64) (models.Friendship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pairLocked(requesterID, addresseeID); ok {
		return models.Friendship{}, storage.ErrFriendshipExists
	}

	now := s.now()
	s.nextFriends++
	f := models.Friendship{
		ID:        s.nextFriends,
		UserID1:   requesterID,
		UserID2:   addresseeID,
		Status:    models.FriendshipPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.friendships[f.ID] = f

	return f, nil
}

func (s *Store) FriendshipByID(_ context.Context, id int64) (models.Friendship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.friendships[id]
	if !ok {
		return models.Friendship{}, storage.ErrFriendshipNotFound
	}

	return f, nil
}

func (s *Store) FriendshipByUsers(_ context.Context, userID1, userID2 int64) (models.Friendship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.pairLocked(userID1, userID2)
	if !ok {
		return models.Friendship{}, storage.ErrFriendshipNotFound
	}

	return f, nil
}

func (s *Store) pairLocked(a, b int64) (models.Friendship, bool) {
	for _, f := range s.friendships {
		if (f.UserID1 == a && f.UserID2 == b) || (f.UserID1 == b && f.UserID2 == a) {
			return f, true
		}
	}
	return models.Friendship{}, false
}

func (s *Store) SetFriendshipStatus(_ context.Context, id int64, status models.FriendshipStatus) (models.Friendship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.friendships[id]
	if !ok {
		return models.Friendship{}, storage.ErrFriendshipNotFound
	}

	f.Status = status
	f.UpdatedAt = s.now()
	s.friendships[id] = f

	return f, nil
}

func (s *Store) Friendships(_ context.Context, userID int64) ([]models.FriendshipView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	views := make([]models.FriendshipView, 0)
	for _, f := range s.friendships {
		if f.UserID1 != userID && f.UserID2 != userID {
			continue
		}

		otherID := f.UserID2
		if f.UserID2 == userID {
			otherID = f.UserID1
		}
		other := s.users[otherID]

		views = append(views, models.FriendshipView{
			ID:        f.ID,
			Received:  f.UserID1 != userID,
			Friend:    models.UserInfo{ID: other.ID, Email: other.Email, Username: other.Username},
			Status:    f.Status,
			CreatedAt: f.CreatedAt,
			UpdatedAt: f.UpdatedAt,
		})
	}

	slices.SortFunc(views, func(a, b models.FriendshipView) int { return cmp.Compare(a.ID, b.ID) })

	return views, nil
}
