package postgres

import (
	"context"
	"fmt"

	"gametrack/internal/models"
)

func (r *PostgresRepo) UserGames(ctx context.Context, userID int64) ([]models.UserGame, error) {
	const op = "storage.postgres.UserGames"

	rows, err := r.pool.Query(ctx, `
		SELECT game_id, liked, played
		FROM user_games
		WHERE user_id = $1
		ORDER BY game_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	games := make([]models.UserGame, 0)
	for rows.Next() {
		var g models.UserGame
		if err := rows.Scan(&g.GameID, &g.Liked, &g.Played); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		games = append(games, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return games, nil
}

// SaveUserGame inserts the interaction or overwrites the flags that are set on game.
func (r *PostgresRepo) SaveUserGame(ctx context.Context, userID int64, game models.UserGame) error {
	const op = "storage.postgres.SaveUserGame"

	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_games (user_id, game_id, liked, played)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, game_id) DO UPDATE
		SET liked  = COALESCE(EXCLUDED.liked, user_games.liked),
		    played = COALESCE(EXCLUDED.played, user_games.played)
	`, userID, game.GameID, game.Liked, game.Played)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
