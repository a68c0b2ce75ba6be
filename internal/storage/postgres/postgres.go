package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gametrack/internal/config"
	"gametrack/internal/models"
	"gametrack/internal/storage"
	"gametrack/internal/storage/postgres/migrations"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const uniqueViolation = "23505"

type PostgresRepo struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg *config.Config) (*PostgresRepo, error) {
	return Connect(ctx, dsn(cfg))
}

// Connect opens a pool for dsn and applies the embedded migrations.
func Connect(ctx context.Context, dsn string) (*PostgresRepo, error) {
	const op = "storage.postgres.Connect"

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse config: %w", op, err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create pool: %w", op, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: failed to ping database: %w", op, err)
	}

	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &PostgresRepo{pool: pool}, nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrations.FS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepo) SaveUser(ctx context.Context, user models.User) (int64, error) {
	const op = "storage.postgres.SaveUser"

	query := `
		INSERT INTO users (email, username, password_hash, salt, verification_token)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id;
	`

	var id int64

	err := r.pool.QueryRow(ctx, query,
		user.Email, user.Username, user.PassHash, user.Salt, user.VerificationToken,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, storage.ErrUserExists
		}

		return 0, fmt.Errorf("%s: failed to save user: %w", op, err)
	}

	return id, nil
}

const userColumns = `id, email, username, password_hash, salt, verification_token`

func (r *PostgresRepo) User(ctx context.Context, email string) (models.User, error) {
	return r.userBy(ctx, "storage.postgres.User", `email = $1`, email)
}

func (r *PostgresRepo) UserByUsername(ctx context.Context, username string) (models.User, error) {
	return r.userBy(ctx, "storage.postgres.UserByUsername", `username = $1`, username)
}

func (r *PostgresRepo) UserByID(ctx context.Context, id int64) (models.User, error) {
	return r.userBy(ctx, "storage.postgres.UserByID", `id = $1`, id)
}

func (r *PostgresRepo) UserByVerificationToken(ctx context.Context, token string) (models.User, error) {
	return r.userBy(ctx, "storage.postgres.UserByVerificationToken", `verification_token = $1`, token)
}

func (r *PostgresRepo) userBy(ctx context.Context, op, where string, arg any) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where + ` LIMIT 1;`

	var u models.User
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.PassHash,
		&u.Salt,
		&u.VerificationToken,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrUserNotFound
		}

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return u, nil
}

func (r *PostgresRepo) ClearVerificationToken(ctx context.Context, userID int64) error {
	const op = "storage.postgres.ClearVerificationToken"

	tag, err := r.pool.Exec(ctx, `UPDATE users SET verification_token = NULL WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

func (r *PostgresRepo) SetVerificationToken(ctx context.Context, userID int64, token string) error {
	const op = "storage.postgres.SetVerificationToken"

	tag, err := r.pool.Exec(ctx, `UPDATE users SET verification_token = $1 WHERE id = $2`, token, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

// SearchUsers matches q as a case-insensitive substring of email or username.
func (r *PostgresRepo) SearchUsers(ctx context.Context, q string, excludeID int64) ([]models.UserInfo, error) {
	const op = "storage.postgres.SearchUsers"

	query := `
		SELECT id, email, username
		FROM users
		WHERE (email ILIKE '%' || $1 || '%' OR username ILIKE '%' || $1 || '%')
		  AND id <> $2
		ORDER BY username
		LIMIT 50;
	`

	rows, err := r.pool.Query(ctx, query, escapeLike(q), excludeID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	users := make([]models.UserInfo, 0)
	for rows.Next() {
		var u models.UserInfo
		if err := rows.Scan(&u.ID, &u.Email, &u.Username); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return users, nil
}

// UpsertRefreshToken returns the user's active record for sessionID, or stores candidate when
// there is none. The owning user row is locked for the duration of the transaction, so
// concurrent calls for one user are serialised and never leave two active records for a session.
// Expired records of the user are pruned on the write path.
func (r *PostgresRepo) UpsertRefreshToken(
	ctx context.Context,
	sessionID string,
	candidate models.RefreshToken,
	now time.Time,
) (models.RefreshToken, error) {
	const op = "storage.postgres.UpsertRefreshToken"

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.RefreshToken{}, fmt.Errorf("%s: failed to begin tx: %w", op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var locked int64
	err = tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, candidate.UserID).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.RefreshToken{}, storage.ErrUserNotFound
		}

		return models.RefreshToken{}, fmt.Errorf("%s: failed to lock user: %w", op, err)
	}

	if sessionID != "" {
		existing := models.RefreshToken{UserID: candidate.UserID}

		err = tx.QueryRow(ctx, `
			SELECT token, session_id, expires_at
			FROM refresh_tokens
			WHERE user_id = $1 AND session_id = $2 AND expires_at > $3
		`, candidate.UserID, sessionID, now).Scan(&existing.Token, &existing.SessionID, &existing.ExpiryDate)

		switch {
		case err == nil:
			if err := tx.Commit(ctx); err != nil {
				return models.RefreshToken{}, fmt.Errorf("%s: failed to commit: %w", op, err)
			}
			return existing, nil
		case !errors.Is(err, pgx.ErrNoRows):
			return models.RefreshToken{}, fmt.Errorf("%s: failed to query session: %w", op, err)
		}
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM refresh_tokens WHERE user_id = $1 AND expires_at <= $2`,
		candidate.UserID, now,
	); err != nil {
		return models.RefreshToken{}, fmt.Errorf("%s: failed to prune expired tokens: %w", op, err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO refresh_tokens (user_id, session_id, token, expires_at)
		VALUES ($1, $2, $3, $4)
	`, candidate.UserID, candidate.SessionID, candidate.Token, candidate.ExpiryDate); err != nil {
		return models.RefreshToken{}, fmt.Errorf("%s: failed to insert refresh token: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.RefreshToken{}, fmt.Errorf("%s: failed to commit: %w", op, err)
	}

	return candidate, nil
}

func (r *PostgresRepo) RefreshToken(ctx context.Context, userID int64, sessionID string) (models.RefreshToken, error) {
	const op = "storage.postgres.RefreshToken"

	rt := models.RefreshToken{UserID: userID}

	err := r.pool.QueryRow(ctx, `
		SELECT token, session_id, expires_at
		FROM refresh_tokens
		WHERE user_id = $1 AND session_id = $2
	`, userID, sessionID).Scan(&rt.Token, &rt.SessionID, &rt.ExpiryDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.RefreshToken{}, storage.ErrRefreshTokenNotFound
		}

		return models.RefreshToken{}, fmt.Errorf("%s: %w", op, err)
	}

	return rt, nil
}

func (r *PostgresRepo) DeleteRefreshToken(ctx context.Context, userID int64, sessionID string) error {
	const op = "storage.postgres.DeleteRefreshToken"

	_, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1 AND session_id = $2`, userID, sessionID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) DeleteSessionRefreshTokens(ctx context.Context, sessionID string) (int64, error) {
	const op = "storage.postgres.DeleteSessionRefreshTokens"

	tag, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE session_id = $1`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected(), nil
}

func (r *PostgresRepo) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.postgres.DeleteExpiredRefreshTokens"

	tag, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected(), nil
}

func (r *PostgresRepo) Close() {
	r.pool.Close()
}

func dsn(cfg *config.Config) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s database=%s sslmode=%s",
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.DBName,
		cfg.Postgres.SSLMode,
	)
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, c := range s {
		if c == '%' || c == '_' || c == '\\' {
			out = append(out, '\\')
		}
		out = append(out, c)
	}
	return string(out)
}
