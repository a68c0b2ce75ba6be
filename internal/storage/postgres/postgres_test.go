//go:build integration

package postgres_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"gametrack/internal/models"
	"gametrack/internal/storage"
	repo "gametrack/internal/storage/postgres"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var dsn string

func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("gametrack_test"),
		postgres.WithUsername("gametrack"),
		postgres.WithPassword("password"),
		tc.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	if err != nil {
		panic(err)
	}

	dsn, err = container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		panic(err)
	}

	code := m.Run()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func connect(t *testing.T) *repo.PostgresRepo {
	t.Helper()

	r, err := repo.Connect(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(r.Close)

	return r
}

func saveUser(t *testing.T, r *repo.PostgresRepo, email, username string) int64 {
	t.Helper()

	token := "verify-" + username
	id, err := r.SaveUser(context.Background(), models.User{
		Email:             email,
		Username:          username,
		PassHash:          "hash",
		Salt:              "salt",
		VerificationToken: &token,
	})
	require.NoError(t, err)

	return id
}

func TestUsers(t *testing.T) {
	r := connect(t)
	ctx := context.Background()

	id := saveUser(t, r, "user1@example.com", "user1")

	_, err := r.SaveUser(ctx, models.User{Email: "user1@example.com", Username: "other", PassHash: "h", Salt: "s"})
	assert.ErrorIs(t, err, storage.ErrUserExists)

	u, err := r.User(ctx, "user1@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.False(t, u.IsVerified())

	u, err = r.UserByVerificationToken(ctx, "verify-user1")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)

	require.NoError(t, r.ClearVerificationToken(ctx, id))

	u, err = r.UserByUsername(ctx, "user1")
	require.NoError(t, err)
	assert.True(t, u.IsVerified())

	_, err = r.UserByVerificationToken(ctx, "verify-user1")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)

	_, err = r.UserByID(ctx, 1_000_000)
	assert.ErrorIs(t, err, storage.ErrUserNotFound)

	saveUser(t, r, "percent%@example.com", "percent")
	found, err := r.SearchUsers(ctx, "%", id)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "percent", found[0].Username)
}

func TestUpsertRefreshToken(t *testing.T) {
	r := connect(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	uid := saveUser(t, r, "user2@example.com", "user2")

	first := models.RefreshToken{UserID: uid, Token: "t1", SessionID: "s1", ExpiryDate: now.Add(time.Hour)}
	got, err := r.UpsertRefreshToken(ctx, "", first, now)
	require.NoError(t, err)
	assert.Equal(t, "t1", got.Token)

	second := models.RefreshToken{UserID: uid, Token: "t2", SessionID: "s2", ExpiryDate: now.Add(time.Hour)}
	got, err = r.UpsertRefreshToken(ctx, "s1", second, now)
	require.NoError(t, err)
	assert.Equal(t, "t1", got.Token)

	later := now.Add(2 * time.Hour)
	got, err = r.UpsertRefreshToken(ctx, "s1", second, later)
	require.NoError(t, err)
	assert.Equal(t, "t2", got.Token)

	_, err = r.RefreshToken(ctx, uid, "s1")
	assert.ErrorIs(t, err, storage.ErrRefreshTokenNotFound)

	_, err = r.UpsertRefreshToken(ctx, "", models.RefreshToken{UserID: 1_000_000, Token: "x", SessionID: "x", ExpiryDate: later}, now)
	assert.ErrorIs(t, err, storage.ErrUserNotFound)

	require.NoError(t, r.DeleteRefreshToken(ctx, uid, "s2"))
	_, err = r.RefreshToken(ctx, uid, "s2")
	assert.ErrorIs(t, err, storage.ErrRefreshTokenNotFound)

	_, err = r.UpsertRefreshToken(ctx, "", models.RefreshToken{UserID: uid, Token: "t3", SessionID: "s3", ExpiryDate: later}, now)
	require.NoError(t, err)

	n, err := r.DeleteSessionRefreshTokens(ctx, "s3")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = r.RefreshToken(ctx, uid, "s3")
	assert.ErrorIs(t, err, storage.ErrRefreshTokenNotFound)

	n, err = r.DeleteSessionRefreshTokens(ctx, "s3")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUpsertRefreshToken_Concurrent(t *testing.T) {
	r := connect(t)
	ctx := context.Background()
	now := time.Now().UTC()

	uid := saveUser(t, r, "user3@example.com", "user3")

	_, err := r.UpsertRefreshToken(ctx, "", models.RefreshToken{
		UserID: uid, Token: "base", SessionID: "shared", ExpiryDate: now.Add(time.Hour),
	}, now)
	require.NoError(t, err)

	var wg sync.WaitGroup
	tokens := make([]string, 8)
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			rt, err := r.UpsertRefreshToken(ctx, "shared", models.RefreshToken{
				UserID: uid, Token: "candidate", SessionID: "fresh", ExpiryDate: now.Add(time.Hour),
			}, now)
			assert.NoError(t, err)
			tokens[i] = rt.Token
		}(i)
	}
	wg.Wait()

	for _, tok := range tokens {
		assert.Equal(t, "base", tok)
	}
}

func TestDeleteExpiredRefreshTokens(t *testing.T) {
	r := connect(t)
	ctx := context.Background()
	now := time.Now().UTC()

	uid := saveUser(t, r, "user4@example.com", "user4")

	_, err := r.UpsertRefreshToken(ctx, "", models.RefreshToken{
		UserID: uid, Token: "old", SessionID: "old", ExpiryDate: now.Add(time.Minute),
	}, now)
	require.NoError(t, err)

	n, err := r.DeleteExpiredRefreshTokens(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))

	_, err = r.RefreshToken(ctx, uid, "old")
	assert.ErrorIs(t, err, storage.ErrRefreshTokenNotFound)
}

func TestGamesAndFriendships(t *testing.T) {
	r := connect(t)
	ctx := context.Background()

	a := saveUser(t, r, "user5@example.com", "user5")
	b := saveUser(t, r, "user6@example.com", "user6")

	liked, played := true, false
	require.NoError(t, r.SaveUserGame(ctx, a, models.UserGame{GameID: 10, Liked: &liked}))
	require.NoError(t, r.SaveUserGame(ctx, a, models.UserGame{GameID: 10, Played: &played}))

	owned, err := r.UserGames(ctx, a)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	require.NotNil(t, owned[0].Liked)
	require.NotNil(t, owned[0].Played)
	assert.True(t, *owned[0].Liked)
	assert.False(t, *owned[0].Played)

	f, err := r.CreateFriendship(ctx, a, b)
	require.NoError(t, err)
	assert.Equal(t, models.FriendshipPending, f.Status)

	_, err = r.CreateFriendship(ctx, b, a)
	assert.ErrorIs(t, err, storage.ErrFriendshipExists)

	byUsers, err := r.FriendshipByUsers(ctx, b, a)
	require.NoError(t, err)
	assert.Equal(t, f.ID, byUsers.ID)

	accepted, err := r.SetFriendshipStatus(ctx, f.ID, models.FriendshipAccepted)
	require.NoError(t, err)
	assert.Equal(t, models.FriendshipAccepted, accepted.Status)

	views, err := r.Friendships(ctx, b)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.True(t, views[0].Received)
	assert.Equal(t, "user5", views[0].Friend.Username)

	_, err = r.FriendshipByID(ctx, 1_000_000)
	assert.ErrorIs(t, err, storage.ErrFriendshipNotFound)
}
