package repository

import (
	"context"
	"database/sql"
	"time"

	"seatkeeper/internal/database"
	"seatkeeper/internal/models"
)

type MovieRepository struct {
	db *database.DB
}

func NewMovieRepository(db *database.DB) *MovieRepository {
	return &MovieRepository{db: db}
}

func (r *MovieRepository) GetByID(ctx context.Context, id int64) (*models.Movie, error) {
	movie := &models.Movie{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, title, runtime_minutes, release_start, release_end
		FROM movies WHERE id = $1`, id).Scan(
		&movie.ID,
		&movie.Title,
		&movie.RuntimeMinutes,
		&movie.ReleaseStart,
		&movie.ReleaseEnd,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return movie, nil
}

func (r *MovieRepository) Create(ctx context.Context, title string, runtimeMinutes int, releaseStart, releaseEnd time.Time) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO movies (title, runtime_minutes, release_start, release_end)
		VALUES ($1, $2, $3, $4) RETURNING id`,
		title, runtimeMinutes, releaseStart, releaseEnd).Scan(&id)
	return id, err
}
