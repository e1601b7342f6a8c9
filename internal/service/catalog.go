package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"seatkeeper/internal/cache"
	apperr "seatkeeper/internal/errors"
	"seatkeeper/internal/models"
)

const defaultCatalogTTL = 5 * time.Minute

// CatalogCache is the Redis side of the seat catalog.
type CatalogCache interface {
	LookupSeat(ctx context.Context, showtimeID, seatID int64) (cache.SeatLookup, error)
	CacheSeats(ctx context.Context, showtimeID int64, seatIDs []int64, ttl time.Duration) error
	ForgetSeats(ctx context.Context, showtimeID int64) error
}

// SeatCatalog tells the hold path which seats exist for a showtime. The
// seat set is read from Postgres once and then served from Redis.
type SeatCatalog struct {
	cache     CatalogCache
	showtimes ShowtimeReader
	halls     HallReader
	ttl       time.Duration
}

func NewSeatCatalog(cache CatalogCache, showtimes ShowtimeReader, halls HallReader, ttl time.Duration) *SeatCatalog {
	if ttl <= 0 {
		ttl = defaultCatalogTTL
	}
	return &SeatCatalog{cache: cache, showtimes: showtimes, halls: halls, ttl: ttl}
}

// Check returns ErrNotFound for an unknown showtime or seat and
// ErrInvalidState when the showtime no longer takes holds.
func (c *SeatCatalog) Check(ctx context.Context, showtimeID, seatID int64) error {
	res, err := c.cache.LookupSeat(ctx, showtimeID, seatID)
	if err != nil {
		return err
	}
	if res == cache.CatalogMiss {
		if err := c.load(ctx, showtimeID); err != nil {
			return err
		}
		if res, err = c.cache.LookupSeat(ctx, showtimeID, seatID); err != nil {
			return err
		}
	}

	switch res {
	case cache.SeatKnown:
		return nil
	case cache.ShowtimeClosed:
		return fmt.Errorf("%w: showtime %d does not take holds", apperr.ErrInvalidState, showtimeID)
	case cache.SeatUnknown:
		return fmt.Errorf("seat %d of showtime %d: %w", seatID, showtimeID, apperr.ErrNotFound)
	default:
		return fmt.Errorf("%w: seat catalog for showtime %d did not load", apperr.ErrStoreUnavailable, showtimeID)
	}
}

// Forget drops the cached seats after a showtime changes.
func (c *SeatCatalog) Forget(ctx context.Context, showtimeID int64) {
	if err := c.cache.ForgetSeats(ctx, showtimeID); err != nil {
		slog.Warn("Failed to drop cached seats", "showtime_id", showtimeID, "error", err)
	}
}

func (c *SeatCatalog) load(ctx context.Context, showtimeID int64) error {
	st, err := c.showtimes.GetByID(ctx, showtimeID)
	if err != nil {
		return fmt.Errorf("failed to get showtime: %w", err)
	}
	if st == nil {
		return fmt.Errorf("showtime %d: %w", showtimeID, apperr.ErrNotFound)
	}

	var seatIDs []int64
	if st.Status == models.ShowtimeScheduled || st.Status == models.ShowtimeSelling {
		seats, err := c.halls.Seats(ctx, st.HallID)
		if err != nil {
			return fmt.Errorf("failed to load hall seats: %w", err)
		}
		seatIDs = make([]int64, 0, len(seats))
		for _, seat := range seats {
			seatIDs = append(seatIDs, seat.ID)
		}
	}

	return c.cache.CacheSeats(ctx, showtimeID, seatIDs, c.ttl)
}
