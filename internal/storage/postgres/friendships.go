package postgres

import (
	"context"
	"errors"
	"fmt"

	"gametrack/internal/models"
	"gametrack/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const friendshipColumns = `id, user_id1, user_id2, status, created_at, updated_at`

func (r *PostgresRepo) CreateFriendship(ctx context.Context, requesterID, addresseeID int64) (models.Friendship, error) {
	const op = "storage.postgres.CreateFriendship"

	row := r.pool.QueryRow(ctx, `
		INSERT INTO friendships (user_id1, user_id2, status)
		VALUES ($1, $2, $3)
		RETURNING `+friendshipColumns,
		requesterID, addresseeID, models.FriendshipPending,
	)

	f, err := scanFriendship(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return models.Friendship{}, storage.ErrFriendshipExists
		}

		return models.Friendship{}, fmt.Errorf("%s: %w", op, err)
	}

	return f, nil
}

func (r *PostgresRepo) FriendshipByID(ctx context.Context, id int64) (models.Friendship, error) {
	const op = "storage.postgres.FriendshipByID"

	f, err := scanFriendship(r.pool.QueryRow(ctx, `SELECT `+friendshipColumns+` FROM friendships WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Friendship{}, storage.ErrFriendshipNotFound
		}

		return models.Friendship{}, fmt.Errorf("%s: %w", op, err)
	}

	return f, nil
}

// FriendshipByUsers finds the friendship between two users regardless of who requested it.
func (r *PostgresRepo) FriendshipByUsers(ctx context.Context, userID1, userID2 int64) (models.Friendship, error) {
	const op = "storage.postgres.FriendshipByUsers"

	f, err := scanFriendship(r.pool.QueryRow(ctx, `
		SELECT `+friendshipColumns+`
		FROM friendships
		WHERE (user_id1 = $1 AND user_id2 = $2) OR (user_id1 = $2 AND user_id2 = $1)
	`, userID1, userID2))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Friendship{}, storage.ErrFriendshipNotFound
		}

		return models.Friendship{}, fmt.Errorf("%s: %w", op, err)
	}

	return f, nil
}

func (r *PostgresRepo) SetFriendshipStatus(ctx context.Context, id int64, status models.FriendshipStatus) (models.Friendship, error) {
	const op = "storage.postgres.SetFriendshipStatus"

	f, err := scanFriendship(r.pool.QueryRow(ctx, `
		UPDATE friendships SET status = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+friendshipColumns,
		status, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Friendship{}, storage.ErrFriendshipNotFound
		}

		return models.Friendship{}, fmt.Errorf("%s: %w", op, err)
	}

	return f, nil
}

// Friendships lists every friendship of userID together with the other participant.
func (r *PostgresRepo) Friendships(ctx context.Context, userID int64) ([]models.FriendshipView, error) {
	const op = "storage.postgres.Friendships"

	rows, err := r.pool.Query(ctx, `
		SELECT f.id, f.user_id1 <> $1, u.id, u.email, u.username, f.status, f.created_at, f.updated_at
		FROM friendships f
		JOIN users u ON u.id = CASE WHEN f.user_id1 = $1 THEN f.user_id2 ELSE f.user_id1 END
		WHERE f.user_id1 = $1 OR f.user_id2 = $1
		ORDER BY f.updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	views := make([]models.FriendshipView, 0)
	for rows.Next() {
		var v models.FriendshipView
		if err := rows.Scan(
			&v.ID, &v.Received,
			&v.Friend.ID, &v.Friend.Email, &v.Friend.Username,
			&v.Status, &v.CreatedAt, &v.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return views, nil
}

func scanFriendship(row pgx.Row) (models.Friendship, error) {
	var f models.Friendship
	err := row.Scan(&f.ID, &f.UserID1, &f.UserID2, &f.Status, &f.CreatedAt, &f.UpdatedAt)
	return f, err
}
