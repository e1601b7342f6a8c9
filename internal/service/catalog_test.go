package service

import (
	"context"
	"testing"
	"time"

	"seatkeeper/internal/config"
	apperr "seatkeeper/internal/errors"
	"seatkeeper/internal/models"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCatalogHolds(t *testing.T) (*HoldService, *SeatCatalog, *fakeShowtimes) {
	t.Helper()
	store, _ := setupHoldStore(t)
	showtimes := newFakeShowtimes(
		models.Showtime{ID: 10, HallID: 1, Status: models.ShowtimeSelling},
		models.Showtime{ID: 11, HallID: 1, Status: models.ShowtimeCancelled},
	)
	halls := &fakeHalls{seats: map[int64][]models.Seat{1: {
		{ID: 1, HallID: 1, Row: 1, Number: 1},
		{ID: 2, HallID: 1, Row: 1, Number: 2},
	}}}
	catalog := NewSeatCatalog(store, showtimes, halls, time.Minute)
	return NewHoldService(store, &recordingPublisher{}, holdCfg).WithCatalog(catalog), catalog, showtimes
}

func TestHoldRejectsUnknownSeatsAndShowtimes(t *testing.T) {
	svc, _, _ := newCatalogHolds(t)
	ctx := context.Background()

	outcome, err := svc.Hold(ctx, 1, 10, 2)
	require.NoError(t, err)
	assert.Equal(t, OutcomeHeld, outcome)

	_, err = svc.Hold(ctx, 1, 10, 99)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.Hold(ctx, 1, 404, 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.Hold(ctx, 1, 11, 1)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	held, err := svc.HeldSeatMap(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int64{2: 1}, held)
}

func TestCatalogServesFromCacheUntilForgotten(t *testing.T) {
	svc, catalog, showtimes := newCatalogHolds(t)
	ctx := context.Background()

	_, err := svc.Hold(ctx, 1, 10, 1)
	require.NoError(t, err)
	_, err = svc.Release(ctx, 1, 10, nil)
	require.NoError(t, err)

	require.NoError(t, showtimes.UpdateStatus(ctx, 10, models.ShowtimeCancelled))
	_, err = svc.Hold(ctx, 1, 10, 1)
	require.NoError(t, err, "cached seat set is still valid")
	_, err = svc.Release(ctx, 1, 10, nil)
	require.NoError(t, err)

	catalog.Forget(ctx, 10)
	_, err = svc.Hold(ctx, 1, 10, 1)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestCancelDropsCachedSeats(t *testing.T) {
	svc, catalog, showtimes := newCatalogHolds(t)
	ctx := context.Background()

	_, err := svc.Hold(ctx, 1, 10, 1)
	require.NoError(t, err)
	_, err = svc.Release(ctx, 1, 10, nil)
	require.NoError(t, err)

	scheduler := NewShowtimeService(showtimes, &fakeHalls{}, fakeMovies{}, newFakeReservations(showtimes),
		fakeHoldChecker{}, clockwork.NewFakeClock(), config.ScheduleConfig{}).WithCatalog(catalog)
	result, err := scheduler.Cancel(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, CancelResultDeleted, result)

	_, err = svc.Hold(ctx, 1, 10, 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
