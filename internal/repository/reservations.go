package repository

import (
	"context"
	"database/sql"

	"seatkeeper/internal/database"

	"github.com/lib/pq"
)

type ReservationRepository struct {
	db *database.DB
}

func NewReservationRepository(db *database.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// Confirm inserts a CONFIRMED row per seat and decrements the showtime's
// available seats by the number of rows actually inserted. Seats that are
// already confirmed are skipped.
func (r *ReservationRepository) Confirm(ctx context.Context, showtimeID, bookingID, userID int64, seatIDs []int64) ([]int64, error) {
	var inserted []int64

	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			INSERT INTO seat_reservations (showtime_id, seat_id, booking_id, user_id, status)
			SELECT $1, s, $2, $3, 'CONFIRMED' FROM UNNEST($4::bigint[]) AS s
			ON CONFLICT (showtime_id, seat_id) WHERE status = 'CONFIRMED' DO NOTHING
			RETURNING seat_id`,
			showtimeID, bookingID, userID, pq.Array(seatIDs))
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return err
			}
			inserted = append(inserted, id)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		if len(inserted) == 0 {
			return nil
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE showtimes
			SET available_seats = GREATEST(available_seats - $1, 0), updated_at = NOW()
			WHERE id = $2`, len(inserted), showtimeID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

// Remove deletes the confirmed rows for the seats and gives the freed
// capacity back to the showtime. Returns the seats actually removed.
func (r *ReservationRepository) Remove(ctx context.Context, showtimeID int64, seatIDs []int64) ([]int64, error) {
	var removed []int64

	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			DELETE FROM seat_reservations
			WHERE showtime_id = $1 AND status = 'CONFIRMED' AND seat_id = ANY($2::bigint[])
			RETURNING seat_id`, showtimeID, pq.Array(seatIDs))
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return err
			}
			removed = append(removed, id)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		if len(removed) == 0 {
			return nil
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE showtimes
			SET available_seats = LEAST(available_seats + $1, total_seats), updated_at = NOW()
			WHERE id = $2`, len(removed), showtimeID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// ConfirmedSeats returns the seats with a CONFIRMED reservation.
func (r *ReservationRepository) ConfirmedSeats(ctx context.Context, showtimeID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT seat_id FROM seat_reservations
		WHERE showtime_id = $1 AND status = 'CONFIRMED'
		ORDER BY seat_id`, showtimeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *ReservationRepository) CountByShowtime(ctx context.Context, showtimeID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM seat_reservations
		WHERE showtime_id = $1 AND status = 'CONFIRMED'`, showtimeID).Scan(&n)
	return n, err
}
