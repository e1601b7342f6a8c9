package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"seatkeeper/internal/database"
	"seatkeeper/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a real Postgres, e.g.
// TEST_DATABASE_DSN="host=localhost port=5432 user=postgres password=postgres dbname=seatkeeper_test sslmode=disable"
func setupDB(t *testing.T) *database.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN is not set")
	}

	sqlDB, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db := &database.DB{DB: sqlDB}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, db.RunMigrations(ctx))
	return db
}

type fixture struct {
	repos   *Repositories
	hallID  int64
	movieID int64
	seatIDs []int64
}

// newFixture creates a fresh cinema, a 2x2 hall and a movie so tests never
// share rows.
func newFixture(t *testing.T, db *database.DB) *fixture {
	t.Helper()
	ctx := context.Background()
	repos := NewRepositories(db)
	name := fmt.Sprintf("%s-%d", t.Name(), time.Now().UnixNano())

	cinemaID, err := repos.Halls.CreateCinema(ctx, name)
	require.NoError(t, err)
	hallID, err := repos.Halls.CreateWithSeats(ctx, cinemaID, "Hall 1", 2, 2)
	require.NoError(t, err)
	movieID, err := repos.Movies.Create(ctx, name, 120,
		time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2030, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	seats, err := repos.Halls.Seats(ctx, hallID)
	require.NoError(t, err)
	require.Len(t, seats, 4)
	ids := make([]int64, len(seats))
	for i, s := range seats {
		ids[i] = s.ID
	}
	return &fixture{repos: repos, hallID: hallID, movieID: movieID, seatIDs: ids}
}

func (f *fixture) showtime(t *testing.T, start, end time.Time, status string) *models.Showtime {
	t.Helper()
	st := &models.Showtime{
		HallID:         f.hallID,
		MovieID:        f.movieID,
		StartTime:      start,
		EndTime:        end,
		Status:         status,
		DayType:        models.DayWeekday,
		TotalSeats:     len(f.seatIDs),
		AvailableSeats: len(f.seatIDs),
	}
	require.NoError(t, f.repos.Showtimes.Create(context.Background(), st))
	return st
}

func at(hour, minute int) time.Time {
	return time.Date(2030, 1, 10, hour, minute, 0, 0, time.UTC)
}

func TestFindOverlappingIsHalfOpen(t *testing.T) {
	f := newFixture(t, setupDB(t))
	ctx := context.Background()

	existing := f.showtime(t, at(10, 0), at(12, 15), models.ShowtimeScheduled)
	f.showtime(t, at(14, 0), at(16, 0), models.ShowtimeCancelled)

	tests := []struct {
		name       string
		start, end time.Time
		exclude    int64
		want       int
	}{
		{"starts inside", at(11, 0), at(13, 0), 0, 1},
		{"starts at end", at(12, 15), at(14, 0), 0, 0},
		{"ends at start", at(8, 0), at(10, 0), 0, 0},
		{"covers", at(9, 0), at(13, 0), 0, 1},
		{"excluded self", at(11, 0), at(13, 0), existing.ID, 0},
		{"cancelled ignored", at(14, 30), at(15, 30), 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.repos.Showtimes.FindOverlapping(ctx, f.hallID, tt.start, tt.end, tt.exclude)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestConfirmSkipsConfirmedSeats(t *testing.T) {
	f := newFixture(t, setupDB(t))
	ctx := context.Background()
	st := f.showtime(t, at(18, 0), at(20, 15), models.ShowtimeSelling)
	a, b, c := f.seatIDs[0], f.seatIDs[1], f.seatIDs[2]

	inserted, err := f.repos.Reservations.Confirm(ctx, st.ID, 1, 42, []int64{a, b})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{a, b}, inserted)

	inserted, err = f.repos.Reservations.Confirm(ctx, st.ID, 2, 43, []int64{b, c})
	require.NoError(t, err)
	assert.Equal(t, []int64{c}, inserted)

	got, err := f.repos.Showtimes.GetByID(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AvailableSeats)

	removed, err := f.repos.Reservations.Remove(ctx, st.ID, []int64{a, b, f.seatIDs[3]})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{a, b}, removed)

	got, err = f.repos.Showtimes.GetByID(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.AvailableSeats)

	confirmed, err := f.repos.Reservations.ConfirmedSeats(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{c}, confirmed)

	n, err := f.repos.Reservations.CountByShowtime(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
