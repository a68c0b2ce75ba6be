package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gametrack/internal/lib/jwt"
	sl "gametrack/internal/lib/logger"
	"gametrack/internal/lib/password"
	"gametrack/internal/lib/verification"
	"gametrack/internal/models"
	"gametrack/internal/session"
	"gametrack/internal/storage"
)

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUserExists          = errors.New("user already exists")
	ErrEmailNotVerified    = errors.New("email not verified")
	ErrMissingCredentials  = errors.New("refresh token or session id is missing")
	ErrVerificationEmail   = errors.New("failed to send verification email")
	ErrInvalidRefreshToken = session.ErrInvalidRefreshToken
)

type Auth struct {
	log         *slog.Logger
	usrSaver    UserSaver
	usrProvider UserProvider
	sessions    SessionManager
	tokens      TokenIssuer
	denylist    TokenDenylist
	publisher   verification.Publisher
	hasher      *password.Hasher
	opts        Options
}

type Options struct {
	Mail                 verification.Mail
	RequireVerifiedEmail bool
	RevokeOnLogout       bool
}

type UserSaver interface {
	SaveUser(ctx context.Context, user models.User) (uid int64, err error)
	ClearVerificationToken(ctx context.Context, uid int64) error
	SetVerificationToken(ctx context.Context, uid int64, token string) error
}

type UserProvider interface {
	User(ctx context.Context, email string) (models.User, error)
	UserByUsername(ctx context.Context, username string) (models.User, error)
	UserByID(ctx context.Context, id int64) (models.User, error)
	UserByVerificationToken(ctx context.Context, token string) (models.User, error)
}

type SessionManager interface {
	GetOrCreateRefreshToken(ctx context.Context, userID int64, sessionID string) (models.RefreshToken, error)
	RotateAccessToken(ctx context.Context, refreshToken, sessionID string) (string, int64, error)
	RevokeSessionByID(ctx context.Context, sessionID string) error
}

type TokenIssuer interface {
	IssueAccessToken(userID int64) (string, error)
	ParseAccessToken(token string) (*jwt.Claims, error)
}

type TokenDenylist interface {
	RevokeAccessToken(ctx context.Context, jti string, ttl time.Duration) error
}

// Session is the outcome of a successful login: the tokens to hand out as cookies.
type Session struct {
	User         models.UserInfo
	AccessToken  string
	RefreshToken string
	SessionID    string
}

func New(
	log *slog.Logger,
	userSaver UserSaver,
	userProvider UserProvider,
	sessions SessionManager,
	tokens TokenIssuer,
	denylist TokenDenylist,
	publisher verification.Publisher,
	hasher *password.Hasher,
	opts Options,
) *Auth {
	return &Auth{
		log:         log,
		usrSaver:    userSaver,
		usrProvider: userProvider,
		sessions:    sessions,
		tokens:      tokens,
		denylist:    denylist,
		publisher:   publisher,
		hasher:      hasher,
		opts:        opts,
	}
}

// RegisterNewUser stores a user pending verification and dispatches the verification email.
// If dispatch fails the user stays persisted and ErrVerificationEmail is returned.
func (a *Auth) RegisterNewUser(
	ctx context.Context,
	email string,
	username string,
	pass string,
) (int64, error) {
	const op = "auth.RegisterNewUser"

	log := a.log.With(
		slog.String("op", op),
	)

	log.Info("Registering new user")

	salt, err := password.NewSalt()
	if err != nil {
		log.Error("failed to generate salt", sl.Err(err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	verificationToken, err := password.NewVerificationToken()
	if err != nil {
		log.Error("failed to generate verification token", sl.Err(err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	id, err := a.usrSaver.SaveUser(ctx, models.User{
		Email:             email,
		Username:          username,
		PassHash:          a.hasher.Hash(salt, pass),
		Salt:              salt,
		VerificationToken: &verificationToken,
	})
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			log.Warn("User already exists")

			return 0, fmt.Errorf("%s: %w", op, ErrUserExists)
		}

		log.Error("Failed to save user", sl.Err(err))

		return 0, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("User registered", slog.Int64("uid", id))

	if err := verification.VerifyUserEmail(ctx, log, a.publisher, a.opts.Mail, email, verificationToken); err != nil {
		return id, fmt.Errorf("%s: %w: %w", op, ErrVerificationEmail, err)
	}

	return id, nil
}

// VerifyEmail confirms the address holding token and logs the user in on a brand-new session.
func (a *Auth) VerifyEmail(ctx context.Context, token string) (Session, error) {
	const op = "auth.VerifyEmail"

	log := a.log.With(
		slog.String("op", op),
	)

	user, err := a.usrProvider.UserByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Info("no user holds verification token")
			return Session{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}

		log.Error("failed to load user", sl.Err(err))
		return Session{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := a.usrSaver.ClearVerificationToken(ctx, user.ID); err != nil {
		log.Error("failed to clear verification token", sl.Err(err))
		return Session{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("email verified", slog.Int64("uid", user.ID))

	s, err := a.startSession(ctx, user, "")
	if err != nil {
		return Session{}, fmt.Errorf("%s: %w", op, err)
	}

	return s, nil
}

// Login accepts either an email or a username. Unknown users and wrong passwords are
// indistinguishable to the caller.
func (a *Auth) Login(
	ctx context.Context,
	email, username, pass string,
	sessionID string,
) (Session, error) {
	const op = "auth.Login"

	log := a.log.With(slog.String("op", op))

	var (
		user models.User
		err  error
	)

	switch {
	case email != "":
		user, err = a.usrProvider.User(ctx, email)
	case username != "":
		user, err = a.usrProvider.UserByUsername(ctx, username)
	default:
		err = storage.ErrUserNotFound
	}
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found")
			return Session{}, ErrInvalidCredentials
		}

		log.Error("failed to get user", sl.Err(err))
		return Session{}, fmt.Errorf("%s: %w", op, err)
	}

	if !a.hasher.Compare(user.PassHash, user.Salt, pass) {
		log.Info("invalid credentials", slog.Int64("uid", user.ID))
		return Session{}, ErrInvalidCredentials
	}

	if a.opts.RequireVerifiedEmail && !user.IsVerified() {
		return Session{}, ErrEmailNotVerified
	}

	s, err := a.startSession(ctx, user, sessionID)
	if err != nil {
		return Session{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged in successfully", slog.Int64("uid", user.ID))

	return s, nil
}

// Refresh exchanges a session's refresh token for a new access token.
func (a *Auth) Refresh(ctx context.Context, refreshToken, sessionID string) (string, models.UserInfo, error) {
	const op = "auth.Refresh"

	log := a.log.With(slog.String("op", op))

	if refreshToken == "" || sessionID == "" {
		return "", models.UserInfo{}, ErrMissingCredentials
	}

	accessToken, userID, err := a.sessions.RotateAccessToken(ctx, refreshToken, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return "", models.UserInfo{}, ErrInvalidRefreshToken
		}

		log.Error("failed to rotate access token", sl.Err(err))
		return "", models.UserInfo{}, fmt.Errorf("%s: %w", op, err)
	}

	user, err := a.usrProvider.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return "", models.UserInfo{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}

		log.Error("failed to load user", sl.Err(err))
		return "", models.UserInfo{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("refresh successful", slog.Int64("uid", userID))

	return accessToken, user.Info(), nil
}

// Logout revokes the server-side state of the session when RevokeOnLogout is set: the session's
// refresh token record is deleted and the presented access token, if still valid, is denylisted
// until it expires. The session is resolved from its id alone, so an expired access cookie does
// not keep the refresh token alive. Both steps are attempted; the caller clears cookies regardless.
func (a *Auth) Logout(ctx context.Context, accessToken, sessionID string) error {
	const op = "auth.Logout"

	log := a.log.With(slog.String("op", op))

	if !a.opts.RevokeOnLogout {
		return nil
	}

	var errs []error

	if sessionID != "" {
		if err := a.sessions.RevokeSessionByID(ctx, sessionID); err != nil {
			log.Error("failed to revoke session", sl.Err(err))
			errs = append(errs, err)
		}
	}

	if accessToken != "" {
		if claims, err := a.tokens.ParseAccessToken(accessToken); err == nil {
			ttl := time.Until(claims.ExpiresAt.Time)
			if err := a.denylist.RevokeAccessToken(ctx, claims.ID, ttl); err != nil {
				log.Error("failed to revoke access token", sl.Err(err))
				errs = append(errs, err)
			}
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("logout successful")

	return nil
}

func (a *Auth) IsLoggedIn(ctx context.Context, userID int64) (models.UserInfo, error) {
	const op = "auth.IsLoggedIn"

	user, err := a.usrProvider.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.UserInfo{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}

		a.log.Error("failed to load user", slog.String("op", op), sl.Err(err))
		return models.UserInfo{}, fmt.Errorf("%s: %w", op, err)
	}

	return user.Info(), nil
}

// ResendVerificationEmail issues a new verification token for a pending user and mails it.
// It reports false without sending anything when the user is already verified.
func (a *Auth) ResendVerificationEmail(ctx context.Context, email string) (bool, error) {
	const op = "auth.ResendVerificationEmail"

	log := a.log.With(slog.String("op", op))

	user, err := a.usrProvider.User(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return false, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}

		log.Error("failed to load user", sl.Err(err))
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if user.IsVerified() {
		return false, nil
	}

	token, err := password.NewVerificationToken()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if err := a.usrSaver.SetVerificationToken(ctx, user.ID, token); err != nil {
		log.Error("failed to store verification token", sl.Err(err))
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if err := verification.VerifyUserEmail(ctx, log, a.publisher, a.opts.Mail, user.Email, token); err != nil {
		return false, fmt.Errorf("%s: %w: %w", op, ErrVerificationEmail, err)
	}

	return true, nil
}

func (a *Auth) startSession(ctx context.Context, user models.User, sessionID string) (Session, error) {
	rt, err := a.sessions.GetOrCreateRefreshToken(ctx, user.ID, sessionID)
	if err != nil {
		return Session{}, err
	}

	accessToken, err := a.tokens.IssueAccessToken(user.ID)
	if err != nil {
		return Session{}, err
	}

	return Session{
		User:         user.Info(),
		AccessToken:  accessToken,
		RefreshToken: rt.Token,
		SessionID:    rt.SessionID,
	}, nil
}
