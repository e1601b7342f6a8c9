package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"seatkeeper/internal/database"
	"seatkeeper/internal/models"
)

type ShowtimeRepository struct {
	db *database.DB
}

func NewShowtimeRepository(db *database.DB) *ShowtimeRepository {
	return &ShowtimeRepository{db: db}
}

const showtimeColumns = `id, hall_id, movie_id, start_time, end_time, status, day_type,
	total_seats, available_seats, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShowtime(row rowScanner) (*models.Showtime, error) {
	st := &models.Showtime{}
	err := row.Scan(
		&st.ID,
		&st.HallID,
		&st.MovieID,
		&st.StartTime,
		&st.EndTime,
		&st.Status,
		&st.DayType,
		&st.TotalSeats,
		&st.AvailableSeats,
		&st.CreatedAt,
		&st.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (r *ShowtimeRepository) Create(ctx context.Context, st *models.Showtime) error {
	query := `
		INSERT INTO showtimes (hall_id, movie_id, start_time, end_time, status, day_type, total_seats, available_seats)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	return r.db.QueryRowContext(ctx, query,
		st.HallID, st.MovieID, st.StartTime, st.EndTime, st.Status, st.DayType, st.TotalSeats, st.AvailableSeats,
	).Scan(&st.ID, &st.CreatedAt, &st.UpdatedAt)
}

func (r *ShowtimeRepository) GetByID(ctx context.Context, id int64) (*models.Showtime, error) {
	query := `SELECT ` + showtimeColumns + ` FROM showtimes WHERE id = $1`

	st, err := scanShowtime(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (r *ShowtimeRepository) Update(ctx context.Context, st *models.Showtime) error {
	query := `
		UPDATE showtimes
		SET hall_id = $1, start_time = $2, end_time = $3, day_type = $4,
		    total_seats = $5, available_seats = $6, updated_at = NOW()
		WHERE id = $7
		RETURNING updated_at`

	return r.db.QueryRowContext(ctx, query,
		st.HallID, st.StartTime, st.EndTime, st.DayType, st.TotalSeats, st.AvailableSeats, st.ID,
	).Scan(&st.UpdatedAt)
}

func (r *ShowtimeRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE showtimes SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	return err
}

func (r *ShowtimeRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM showtimes WHERE id = $1`, id)
	return err
}

// FindOverlapping returns non-cancelled showtimes in the hall whose
// [start, end) intersects the given interval, skipping excludeID.
func (r *ShowtimeRepository) FindOverlapping(ctx context.Context, hallID int64, start, end time.Time, excludeID int64) ([]models.Showtime, error) {
	query := `SELECT ` + showtimeColumns + `
		FROM showtimes
		WHERE hall_id = $1
		  AND status <> 'CANCELLED'
		  AND start_time < $3
		  AND end_time > $2
		  AND id <> $4
		ORDER BY start_time`

	rows, err := r.db.QueryContext(ctx, query, hallID, start, end, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.Showtime
	for rows.Next() {
		st, err := scanShowtime(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *st)
	}
	return result, rows.Err()
}

// List returns showtimes filtered by the non-zero fields of req.
func (r *ShowtimeRepository) List(ctx context.Context, req models.SearchShowtimesRequest) ([]models.Showtime, error) {
	query := `SELECT ` + showtimeColumns + ` FROM showtimes WHERE 1=1`
	var args []any
	argIndex := 1

	if req.MovieID > 0 {
		query += fmt.Sprintf(" AND movie_id = $%d", argIndex)
		args = append(args, req.MovieID)
		argIndex++
	}
	if req.HallID > 0 {
		query += fmt.Sprintf(" AND hall_id = $%d", argIndex)
		args = append(args, req.HallID)
		argIndex++
	}
	if req.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, req.Status)
		argIndex++
	}
	if req.Date != "" {
		query += fmt.Sprintf(" AND DATE(start_time) = $%d", argIndex)
		args = append(args, req.Date)
		argIndex++
	}

	query += " ORDER BY start_time, id"

	if req.Page > 0 && req.PageSize > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
		args = append(args, req.PageSize, (req.Page-1)*req.PageSize)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.Showtime
	for rows.Next() {
		st, err := scanShowtime(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *st)
	}
	return result, rows.Err()
}

// MarkFinished moves showtimes that ended before now to FINISHED.
func (r *ShowtimeRepository) MarkFinished(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE showtimes SET status = 'FINISHED', updated_at = NOW()
		WHERE status IN ('SCHEDULED', 'SELLING') AND end_time <= $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// OpenSales moves SCHEDULED showtimes starting before until to SELLING.
func (r *ShowtimeRepository) OpenSales(ctx context.Context, now, until time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE showtimes SET status = 'SELLING', updated_at = NOW()
		WHERE status = 'SCHEDULED' AND start_time > $1 AND start_time <= $2`, now, until)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
