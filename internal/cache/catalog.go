package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const catalogKeyPrefix = "seat:catalog:"

// closedMember marks a showtime whose seats cannot be held. Seat ids are
// positive, so it never collides with a real seat.
const closedMember = "closed"

// Catalog lookup results
type SeatLookup int

const (
	CatalogMiss SeatLookup = iota
	SeatKnown
	SeatUnknown
	ShowtimeClosed
)

func catalogKey(showtimeID int64) string {
	return catalogKeyPrefix + strconv.FormatInt(showtimeID, 10)
}

// LookupSeat checks a seat against the cached seat set of the showtime.
func (s *HoldStore) LookupSeat(ctx context.Context, showtimeID, seatID int64) (SeatLookup, error) {
	key := catalogKey(showtimeID)
	pipe := s.client.Pipeline()
	exists := pipe.Exists(ctx, key)
	closed := pipe.SIsMember(ctx, key, closedMember)
	member := pipe.SIsMember(ctx, key, seatID)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return CatalogMiss, unavailable(err)
	}

	switch {
	case exists.Val() == 0:
		return CatalogMiss, nil
	case closed.Val():
		return ShowtimeClosed, nil
	case member.Val():
		return SeatKnown, nil
	default:
		return SeatUnknown, nil
	}
}

// CacheSeats stores the holdable seats of a showtime. An empty list marks
// the showtime closed for holds.
func (s *HoldStore) CacheSeats(ctx context.Context, showtimeID int64, seatIDs []int64, ttl time.Duration) error {
	key := catalogKey(showtimeID)
	members := make([]any, 0, len(seatIDs))
	for _, id := range seatIDs {
		members = append(members, id)
	}
	if len(members) == 0 {
		members = append(members, closedMember)
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SAdd(ctx, key, members...)
	pipe.PExpire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return unavailable(err)
	}
	return nil
}

// ForgetSeats drops the cached seat set so the next hold reloads it.
func (s *HoldStore) ForgetSeats(ctx context.Context, showtimeID int64) error {
	if err := s.client.Del(ctx, catalogKey(showtimeID)).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}
