package database

import (
	"context"
	"fmt"
	"log/slog"
)

func (db *DB) RunMigrations(ctx context.Context) error {
	slog.Info("Running database migrations...")

	migrations := []string{
		createCinemasTable,
		createHallsTable,
		createSeatsTable,
		createMoviesTable,
		createShowtimesTable,
		createShowtimesHallIndex,
		createSeatReservationsTable,
		createSeatReservationsUniqueIndex,
	}

	for i, migration := range migrations {
		slog.Debug("Running migration", "step", i+1)
		if _, err := db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	slog.Info("All migrations completed successfully", "count", len(migrations))
	return nil
}

const createCinemasTable = `
CREATE TABLE IF NOT EXISTS cinemas (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'ACTIVE',
    CHECK (status IN ('ACTIVE', 'INACTIVE'))
);`

const createHallsTable = `
CREATE TABLE IF NOT EXISTS halls (
    id BIGSERIAL PRIMARY KEY,
    cinema_id BIGINT NOT NULL REFERENCES cinemas(id) ON DELETE CASCADE,
    name VARCHAR(100) NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'ACTIVE',
    CHECK (status IN ('ACTIVE', 'INACTIVE'))
);`

const createSeatsTable = `
CREATE TABLE IF NOT EXISTS seats (
    id BIGSERIAL PRIMARY KEY,
    hall_id BIGINT NOT NULL REFERENCES halls(id) ON DELETE CASCADE,
    row_number INTEGER NOT NULL,
    seat_number INTEGER NOT NULL,
    UNIQUE(hall_id, row_number, seat_number)
);`

const createMoviesTable = `
CREATE TABLE IF NOT EXISTS movies (
    id BIGSERIAL PRIMARY KEY,
    title VARCHAR(500) NOT NULL,
    runtime_minutes INTEGER NOT NULL CHECK (runtime_minutes > 0),
    release_start DATE NOT NULL,
    release_end DATE NOT NULL,
    CHECK (release_end >= release_start)
);`

const createShowtimesTable = `
CREATE TABLE IF NOT EXISTS showtimes (
    id BIGSERIAL PRIMARY KEY,
    hall_id BIGINT NOT NULL REFERENCES halls(id),
    movie_id BIGINT NOT NULL REFERENCES movies(id),
    start_time TIMESTAMPTZ NOT NULL,
    end_time TIMESTAMPTZ NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'SCHEDULED',
    day_type VARCHAR(20) NOT NULL,
    total_seats INTEGER NOT NULL DEFAULT 0,
    available_seats INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CHECK (end_time > start_time),
    CHECK (status IN ('SCHEDULED', 'SELLING', 'CANCELLED', 'FINISHED')),
    CHECK (day_type IN ('WEEKDAY', 'WEEKEND')),
    CHECK (available_seats >= 0 AND available_seats <= total_seats)
);`

const createShowtimesHallIndex = `
CREATE INDEX IF NOT EXISTS showtimes_hall_start_idx
ON showtimes (hall_id, start_time) WHERE status <> 'CANCELLED';`

const createSeatReservationsTable = `
CREATE TABLE IF NOT EXISTS seat_reservations (
    id BIGSERIAL PRIMARY KEY,
    showtime_id BIGINT NOT NULL REFERENCES showtimes(id) ON DELETE CASCADE,
    seat_id BIGINT NOT NULL REFERENCES seats(id),
    booking_id BIGINT NOT NULL,
    user_id BIGINT NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'CONFIRMED',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CHECK (status IN ('CONFIRMED', 'CANCELLED'))
);`

const createSeatReservationsUniqueIndex = `
CREATE UNIQUE INDEX IF NOT EXISTS seat_reservations_confirmed_uidx
ON seat_reservations (showtime_id, seat_id) WHERE status = 'CONFIRMED';`
