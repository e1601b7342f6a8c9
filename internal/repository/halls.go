package repository

import (
	"context"
	"database/sql"

	"seatkeeper/internal/database"
	"seatkeeper/internal/models"
)

type HallRepository struct {
	db *database.DB
}

func NewHallRepository(db *database.DB) *HallRepository {
	return &HallRepository{db: db}
}

func (r *HallRepository) GetByID(ctx context.Context, id int64) (*models.Hall, error) {
	hall := &models.Hall{}
	query := `
		SELECT h.id, h.cinema_id, h.name, h.status, c.status,
		       (SELECT COUNT(*) FROM seats s WHERE s.hall_id = h.id)
		FROM halls h
		JOIN cinemas c ON c.id = h.cinema_id
		WHERE h.id = $1`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&hall.ID,
		&hall.CinemaID,
		&hall.Name,
		&hall.Status,
		&hall.CinemaStatus,
		&hall.SeatCount,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return hall, nil
}

func (r *HallRepository) Seats(ctx context.Context, hallID int64) ([]models.Seat, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, hall_id, row_number, seat_number
		FROM seats
		WHERE hall_id = $1
		ORDER BY row_number, seat_number`, hallID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var seats []models.Seat
	for rows.Next() {
		var seat models.Seat
		if err := rows.Scan(&seat.ID, &seat.HallID, &seat.Row, &seat.Number); err != nil {
			return nil, err
		}
		seats = append(seats, seat)
	}
	return seats, rows.Err()
}

// CreateWithSeats inserts a hall with a rows x seatsPerRow grid.
func (r *HallRepository) CreateWithSeats(ctx context.Context, cinemaID int64, name string, rowCount, seatsPerRow int) (int64, error) {
	var hallID int64
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx,
			`INSERT INTO halls (cinema_id, name) VALUES ($1, $2) RETURNING id`,
			cinemaID, name).Scan(&hallID); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO seats (hall_id, row_number, seat_number) VALUES ($1, $2, $3)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for row := 1; row <= rowCount; row++ {
			for seat := 1; seat <= seatsPerRow; seat++ {
				if _, err := stmt.ExecContext(ctx, hallID, row, seat); err != nil {
					return err
				}
			}
		}
		return nil
	})
	return hallID, err
}

func (r *HallRepository) CreateCinema(ctx context.Context, name string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO cinemas (name) VALUES ($1) RETURNING id`, name).Scan(&id)
	return id, err
}
