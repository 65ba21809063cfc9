package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SavedMovieRepository defines the interface for the user_movies table
type SavedMovieRepository interface {
	Add(ctx context.Context, userID, movieID int64) (bool, error)
	Remove(ctx context.Context, userID, movieID int64) error
	ListMovieIDs(ctx context.Context, userID int64) ([]int64, error)
}

// savedMovieRepository implements SavedMovieRepository using PostgreSQL
type savedMovieRepository struct {
	pool *pgxpool.Pool
}

// NewSavedMovieRepository creates a new SavedMovieRepository instance
func NewSavedMovieRepository(pool *pgxpool.Pool) SavedMovieRepository {
	return &savedMovieRepository{pool: pool}
}

// Add saves a movie for a user; it reports false when it was already saved
func (r *savedMovieRepository) Add(ctx context.Context, userID, movieID int64) (bool, error) {
	query := `
		INSERT INTO user_movies (user_id, movie_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, movie_id) DO NOTHING
	`

	result, err := r.pool.Exec(ctx, query, userID, movieID)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

// Remove deletes a saved movie; removing an absent movie is not an error
func (r *savedMovieRepository) Remove(ctx context.Context, userID, movieID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM user_movies WHERE user_id = $1 AND movie_id = $2`, userID, movieID)
	return err
}

// ListMovieIDs returns the user's saved movie ids in the order they were added
func (r *savedMovieRepository) ListMovieIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT movie_id FROM user_movies WHERE user_id = $1 ORDER BY added_at, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
