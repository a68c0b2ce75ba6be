package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"gametrack/internal/lib/jwt"
	sl "gametrack/internal/lib/logger"
	"gametrack/internal/lib/password"
	"gametrack/internal/lib/verification"
	"gametrack/internal/models"
	"gametrack/internal/session"
	"gametrack/internal/storage"
	"gametrack/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu   sync.Mutex
	msgs []models.Message
	err  error
}

func (p *fakePublisher) SendMessage(_ context.Context, msg models.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *fakePublisher) last(t *testing.T) models.Message {
	t.Helper()

	p.mu.Lock()
	defer p.mu.Unlock()

	require.NotEmpty(t, p.msgs)
	return p.msgs[len(p.msgs)-1]
}

type fakeDenylist struct {
	revoked map[string]time.Duration
	err     error
}

func (d *fakeDenylist) RevokeAccessToken(_ context.Context, jti string, ttl time.Duration) error {
	if d.err != nil {
		return d.err
	}
	d.revoked[jti] = ttl
	return nil
}

type env struct {
	auth     *Auth
	store    *memory.Store
	tokens   *jwt.Manager
	pub      *fakePublisher
	denylist *fakeDenylist
}

func newEnv(t *testing.T, opts Options) *env {
	t.Helper()

	log := sl.NewDiscardLogger()
	store := memory.New()
	tokens := jwt.NewManager("access", "refresh", 15*time.Minute, time.Hour)
	pub := &fakePublisher{}
	denylist := &fakeDenylist{revoked: map[string]time.Duration{}}

	if opts.Mail == (verification.Mail{}) {
		opts.Mail = verification.Mail{AppName: "gametrack", FrontendURL: "http://front", Sender: "no-reply@x.com"}
	}

	a := New(log, store, store, session.New(log, tokens, store), tokens, denylist, pub, password.NewHasher("secret"), opts)

	return &env{auth: a, store: store, tokens: tokens, pub: pub, denylist: denylist}
}

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()

	_, token, ok := strings.Cut(link, "token=")
	require.True(t, ok)
	return token
}

func TestRegisterVerifyLogin(t *testing.T) {
	e := newEnv(t, Options{RevokeOnLogout: true})
	ctx := context.Background()

	uid, err := e.auth.RegisterNewUser(ctx, "a@x.com", "alice", "pw1")
	require.NoError(t, err)

	user, err := e.store.UserByID(ctx, uid)
	require.NoError(t, err)
	assert.False(t, user.IsVerified())
	assert.NotEqual(t, "pw1", user.PassHash)

	msg := e.pub.last(t)
	assert.Equal(t, "a@x.com", msg.Email)
	assert.Equal(t, "no-reply@x.com", msg.From)
	token := tokenFromLink(t, msg.Link)
	assert.Equal(t, *user.VerificationToken, token)

	s, err := e.auth.VerifyEmail(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, models.UserInfo{Email: "a@x.com", Username: "alice"}, s.User)
	assert.NotEmpty(t, s.AccessToken)
	assert.NotEmpty(t, s.RefreshToken)
	assert.NotEmpty(t, s.SessionID)

	user, err = e.store.UserByID(ctx, uid)
	require.NoError(t, err)
	assert.True(t, user.IsVerified())

	_, err = e.auth.VerifyEmail(ctx, token)
	assert.ErrorIs(t, err, storage.ErrUserNotFound)

	login, err := e.auth.Login(ctx, "a@x.com", "", "pw1", s.SessionID)
	require.NoError(t, err)
	assert.Equal(t, s.User, login.User)
	assert.Equal(t, s.SessionID, login.SessionID)
	assert.Equal(t, s.RefreshToken, login.RefreshToken)

	byName, err := e.auth.Login(ctx, "", "alice", "pw1", "")
	require.NoError(t, err)
	assert.NotEqual(t, s.SessionID, byName.SessionID)
}

func TestRegister_Duplicate(t *testing.T) {
	e := newEnv(t, Options{})
	ctx := context.Background()

	_, err := e.auth.RegisterNewUser(ctx, "a@x.com", "alice", "pw1")
	require.NoError(t, err)

	_, err = e.auth.RegisterNewUser(ctx, "a@x.com", "other", "pw2")
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestRegister_EmailFailureKeepsUser(t *testing.T) {
	e := newEnv(t, Options{})
	e.pub.err = errors.New("broker down")
	ctx := context.Background()

	uid, err := e.auth.RegisterNewUser(ctx, "a@x.com", "alice", "pw1")
	assert.ErrorIs(t, err, ErrVerificationEmail)
	assert.NotZero(t, uid)

	_, err = e.store.User(ctx, "a@x.com")
	assert.NoError(t, err)
}

func TestLogin_EnumerationResistance(t *testing.T) {
	e := newEnv(t, Options{})
	ctx := context.Background()

	_, err := e.auth.RegisterNewUser(ctx, "a@x.com", "alice", "pw1")
	require.NoError(t, err)

	_, wrongPass := e.auth.Login(ctx, "a@x.com", "", "nope", "")
	_, unknown := e.auth.Login(ctx, "b@x.com", "", "pw1", "")
	_, unknownName := e.auth.Login(ctx, "", "bob", "pw1", "")

	assert.ErrorIs(t, wrongPass, ErrInvalidCredentials)
	assert.ErrorIs(t, unknown, ErrInvalidCredentials)
	assert.ErrorIs(t, unknownName, ErrInvalidCredentials)
	assert.Equal(t, wrongPass.Error(), unknown.Error())
}

func TestLogin_UnverifiedUser(t *testing.T) {
	ctx := context.Background()

	allowed := newEnv(t, Options{})
	_, err := allowed.auth.RegisterNewUser(ctx, "a@x.com", "alice", "pw1")
	require.NoError(t, err)

	_, err = allowed.auth.Login(ctx, "a@x.com", "", "pw1", "")
	assert.NoError(t, err)

	strict := newEnv(t, Options{RequireVerifiedEmail: true})
	_, err = strict.auth.RegisterNewUser(ctx, "a@x.com", "alice", "pw1")
	require.NoError(t, err)

	_, err = strict.auth.Login(ctx, "a@x.com", "", "pw1", "")
	assert.ErrorIs(t, err, ErrEmailNotVerified)
}

func TestRefresh(t *testing.T) {
	e := newEnv(t, Options{})
	ctx := context.Background()

	_, err := e.auth.RegisterNewUser(ctx, "a@x.com", "alice", "pw1")
	require.NoError(t, err)

	s, err := e.auth.Login(ctx, "a@x.com", "", "pw1", "")
	require.NoError(t, err)

	access, user, err := e.auth.Refresh(ctx, s.RefreshToken, s.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	_, err = e.tokens.VerifyAccessToken(access)
	assert.NoError(t, err)

	_, _, err = e.auth.Refresh(ctx, "", s.SessionID)
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, _, err = e.auth.Refresh(ctx, s.RefreshToken, "")
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, _, err = e.auth.Refresh(ctx, s.RefreshToken, "stale")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestLogout_Revokes(t *testing.T) {
	e := newEnv(t, Options{RevokeOnLogout: true})
	ctx := context.Background()

	_, err := e.auth.RegisterNewUser(ctx, "a@x.com", "alice", "pw1")
	require.NoError(t, err)

	s, err := e.auth.Login(ctx, "a@x.com", "", "pw1", "")
	require.NoError(t, err)

	require.NoError(t, e.auth.Logout(ctx, s.AccessToken, s.SessionID))

	claims, err := e.tokens.ParseAccessToken(s.AccessToken)
	require.NoError(t, err)
	ttl, ok := e.denylist.revoked[claims.ID]
	require.True(t, ok)
	assert.Greater(t, ttl, time.Duration(0))

	_, _, err = e.auth.Refresh(ctx, s.RefreshToken, s.SessionID)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestLogout_WithoutAccessToken(t *testing.T) {
	e := newEnv(t, Options{RevokeOnLogout: true})
	ctx := context.Background()

	uid, err := e.auth.RegisterNewUser(ctx, "a@x.com", "alice", "pw1")
	require.NoError(t, err)

	s, err := e.auth.Login(ctx, "a@x.com", "", "pw1", "")
	require.NoError(t, err)

	require.NoError(t, e.auth.Logout(ctx, "", s.SessionID))
	assert.Equal(t, 0, e.store.RefreshTokenCount(uid))
	assert.Empty(t, e.denylist.revoked)

	_, _, err = e.auth.Refresh(ctx, s.RefreshToken, s.SessionID)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestLogout_DenylistFailureStillRevokesSession(t *testing.T) {
	e := newEnv(t, Options{RevokeOnLogout: true})
	ctx := context.Background()

	uid, err := e.auth.RegisterNewUser(ctx, "a@x.com", "alice", "pw1")
	require.NoError(t, err)

	s, err := e.auth.Login(ctx, "a@x.com", "", "pw1", "")
	require.NoError(t, err)

	denyErr := errors.New("redis down")
	e.denylist.err = denyErr

	err = e.auth.Logout(ctx, s.AccessToken, s.SessionID)
	assert.ErrorIs(t, err, denyErr)
	assert.Equal(t, 0, e.store.RefreshTokenCount(uid))

	_, _, err = e.auth.Refresh(ctx, s.RefreshToken, s.SessionID)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestLogout_WithoutRevocation(t *testing.T) {
	e := newEnv(t, Options{RevokeOnLogout: false})
	ctx := context.Background()

	_, err := e.auth.RegisterNewUser(ctx, "a@x.com", "alice", "pw1")
	require.NoError(t, err)

	s, err := e.auth.Login(ctx, "a@x.com", "", "pw1", "")
	require.NoError(t, err)

	require.NoError(t, e.auth.Logout(ctx, s.AccessToken, s.SessionID))
	assert.Empty(t, e.denylist.revoked)

	_, _, err = e.auth.Refresh(ctx, s.RefreshToken, s.SessionID)
	assert.NoError(t, err)
}

func TestLogout_NothingToRevoke(t *testing.T) {
	e := newEnv(t, Options{RevokeOnLogout: true})

	assert.NoError(t, e.auth.Logout(context.Background(), "", ""))
	assert.NoError(t, e.auth.Logout(context.Background(), "garbage", "sid"))
}

func TestIsLoggedIn(t *testing.T) {
	e := newEnv(t, Options{})
	ctx := context.Background()

	uid, err := e.auth.RegisterNewUser(ctx, "a@x.com", "alice", "pw1")
	require.NoError(t, err)

	info, err := e.auth.IsLoggedIn(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, models.UserInfo{Email: "a@x.com", Username: "alice"}, info)

	_, err = e.auth.IsLoggedIn(ctx, uid+100)
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

func TestResendVerificationEmail(t *testing.T) {
	e := newEnv(t, Options{})
	ctx := context.Background()

	_, err := e.auth.RegisterNewUser(ctx, "a@x.com", "alice", "pw1")
	require.NoError(t, err)
	first := tokenFromLink(t, e.pub.last(t).Link)

	sent, err := e.auth.ResendVerificationEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, sent)

	second := tokenFromLink(t, e.pub.last(t).Link)
	assert.NotEqual(t, first, second)

	_, err = e.auth.VerifyEmail(ctx, first)
	assert.ErrorIs(t, err, storage.ErrUserNotFound)

	_, err = e.auth.VerifyEmail(ctx, second)
	require.NoError(t, err)

	sent, err = e.auth.ResendVerificationEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.False(t, sent)

	_, err = e.auth.ResendVerificationEmail(ctx, "nobody@x.com")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}
