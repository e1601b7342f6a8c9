package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"seatkeeper/internal/cache"
	"seatkeeper/internal/config"
	apperr "seatkeeper/internal/errors"
	"seatkeeper/internal/logger"
	"seatkeeper/internal/messaging"
	"seatkeeper/internal/metrics"
	"seatkeeper/internal/models"
)

// HoldStore is the subset of the Redis hold store the services rely on.
type HoldStore interface {
	Acquire(ctx context.Context, userID, showtimeID, seatID int64, limit int, t cache.HoldTimings) (cache.AcquireResult, error)
	Release(ctx context.Context, userID, showtimeID int64, seatIDs []int64) ([]int64, error)
	ActiveShowtime(ctx context.Context, userID int64) (int64, error)
	HeldSeats(ctx context.Context, showtimeID int64) (map[int64]int64, error)
	HasHolds(ctx context.Context, showtimeID int64) (bool, error)
	UserSeats(ctx context.Context, userID, showtimeID int64) ([]int64, error)
	SessionTTL(ctx context.Context, userID, showtimeID int64) (time.Duration, error)
	OrphanedSessions(ctx context.Context) ([]cache.Session, error)
}

// Hold outcomes reported per seat
const (
	OutcomeHeld         = "HELD"
	OutcomeAlreadyHeld  = "ALREADY_HELD"
	OutcomeUnavailable  = "UNAVAILABLE"
	OutcomeLimitReached = "LIMIT_REACHED"
)

// HoldService is the seat hold engine. Redis is the only arbiter of who
// holds a seat; the service adds the showtime switch rule and events.
type HoldService struct {
	store   HoldStore
	events  messaging.SeatEventPublisher
	cfg     config.HoldConfig
	catalog *SeatCatalog
}

func NewHoldService(store HoldStore, events messaging.SeatEventPublisher, cfg config.HoldConfig) *HoldService {
	return &HoldService{store: store, events: events, cfg: cfg}
}

// WithCatalog rejects holds on unknown seats and closed showtimes.
func (s *HoldService) WithCatalog(catalog *SeatCatalog) *HoldService {
	s.catalog = catalog
	return s
}

// switchAttempts bounds how often Hold retries after a showtime switch
// when the user's concurrent requests keep moving the active showtime.
const switchAttempts = 3

// Hold tries to hold one seat. A seat held by someone else is a silent
// no-op reported as OutcomeUnavailable. Holds on another showtime are
// released first; the store refuses to acquire while they exist.
func (s *HoldService) Hold(ctx context.Context, userID, showtimeID, seatID int64) (string, error) {
	if s.catalog != nil {
		if err := s.catalog.Check(ctx, showtimeID, seatID); err != nil {
			return "", err
		}
	}

	res, err := s.acquire(ctx, userID, showtimeID, seatID)
	for attempt := 0; err == nil && res == cache.SwitchRequired; attempt++ {
		if attempt == switchAttempts {
			metrics.HoldsTotal.WithLabelValues(res.String()).Inc()
			return OutcomeUnavailable, fmt.Errorf("%w: holds on another showtime are still changing", apperr.ErrSeatUnavailable)
		}
		if err := s.switchIfNeeded(ctx, userID, showtimeID); err != nil {
			return "", err
		}
		res, err = s.acquire(ctx, userID, showtimeID, seatID)
	}
	if err != nil {
		metrics.HoldsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("failed to hold seat %d: %w", seatID, err)
	}
	metrics.HoldsTotal.WithLabelValues(res.String()).Inc()

	switch res {
	case cache.Acquired:
		s.publish(ctx, models.SeatEvent{
			Type:       models.EventSeatHeld,
			ShowtimeID: showtimeID,
			SeatIDs:    []int64{seatID},
			Status:     models.SeatHeld,
			UserID:     userID,
		})
		return OutcomeHeld, nil
	case cache.AlreadyHeld:
		return OutcomeAlreadyHeld, nil
	case cache.LimitReached:
		s.publish(ctx, models.SeatEvent{
			Type:       models.EventSeatLimitReached,
			ShowtimeID: showtimeID,
			SeatIDs:    []int64{seatID},
			UserID:     userID,
			Limit:      s.cfg.Limit,
		})
		return OutcomeLimitReached, fmt.Errorf("%w: at most %d seats", apperr.ErrSeatLimitReached, s.cfg.Limit)
	default:
		return OutcomeUnavailable, nil
	}
}

// HoldSeats holds seats in order and stops at the first limit rejection.
func (s *HoldService) HoldSeats(ctx context.Context, userID, showtimeID int64, seatIDs []int64) ([]models.HoldOutcomeItem, error) {
	results := make([]models.HoldOutcomeItem, 0, len(seatIDs))
	for _, seatID := range seatIDs {
		outcome, err := s.Hold(ctx, userID, showtimeID, seatID)
		if outcome != "" {
			results = append(results, models.HoldOutcomeItem{SeatID: seatID, Outcome: outcome})
		}
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// Release ends the caller's holds on the given seats. Seats the caller
// does not hold are ignored.
func (s *HoldService) Release(ctx context.Context, userID, showtimeID int64, seatIDs []int64) ([]int64, error) {
	released, err := s.store.Release(ctx, userID, showtimeID, seatIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to release seats: %w", err)
	}
	s.announceRelease(ctx, userID, showtimeID, released, models.ReasonUser)
	return released, nil
}

// SwitchShowtime drops every hold the user has on a showtime they left.
func (s *HoldService) SwitchShowtime(ctx context.Context, userID, fromShowtimeID int64) ([]int64, error) {
	released, err := s.store.Release(ctx, userID, fromShowtimeID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to release holds for showtime %d: %w", fromShowtimeID, err)
	}
	s.announceRelease(ctx, userID, fromShowtimeID, released, models.ReasonShowtimeSwitch)
	return released, nil
}

// Promote removes holds for seats that became confirmed reservations.
// No release event is emitted; the caller announces the booking.
func (s *HoldService) Promote(ctx context.Context, userID, showtimeID int64, seatIDs []int64) error {
	if _, err := s.store.Release(ctx, userID, showtimeID, seatIDs); err != nil {
		return fmt.Errorf("failed to promote holds: %w", err)
	}
	return nil
}

// HeldSeats lists every held seat of a showtime with its holder.
func (s *HoldService) HeldSeats(ctx context.Context, showtimeID int64) ([]models.HeldSeat, error) {
	held, err := s.HeldSeatMap(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	result := make([]models.HeldSeat, 0, len(held))
	for seatID, userID := range held {
		result = append(result, models.HeldSeat{SeatID: seatID, UserID: userID})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SeatID < result[j].SeatID })
	return result, nil
}

// HeldSeatMap returns seat -> holder for a showtime.
func (s *HoldService) HeldSeatMap(ctx context.Context, showtimeID int64) (map[int64]int64, error) {
	held, err := s.store.HeldSeats(ctx, showtimeID)
	if err != nil {
		return nil, fmt.Errorf("failed to read held seats: %w", err)
	}
	return held, nil
}

// HasHolds reports whether anyone holds a seat of the showtime.
func (s *HoldService) HasHolds(ctx context.Context, showtimeID int64) (bool, error) {
	has, err := s.store.HasHolds(ctx, showtimeID)
	if err != nil {
		return false, fmt.Errorf("failed to check holds: %w", err)
	}
	return has, nil
}

// UserSeats returns the caller's held seats and the session's remaining TTL.
func (s *HoldService) UserSeats(ctx context.Context, userID, showtimeID int64) (*models.MyHoldsResponse, error) {
	seats, err := s.store.UserSeats(ctx, userID, showtimeID)
	if err != nil {
		return nil, fmt.Errorf("failed to read user seats: %w", err)
	}
	ttl, err := s.RemainingTTL(ctx, userID, showtimeID)
	if err != nil {
		return nil, err
	}
	return &models.MyHoldsResponse{
		ShowtimeID: showtimeID,
		SeatIDs:    seats,
		ExpiresIn:  int64(ttl / time.Second),
	}, nil
}

// RemainingTTL is how long the user's holds for the showtime have left.
func (s *HoldService) RemainingTTL(ctx context.Context, userID, showtimeID int64) (time.Duration, error) {
	ttl, err := s.store.SessionTTL(ctx, userID, showtimeID)
	if err != nil {
		return 0, fmt.Errorf("failed to read session ttl: %w", err)
	}
	return ttl, nil
}

// HandleIntent executes a hold or release request forwarded by a gateway.
func (s *HoldService) HandleIntent(ctx context.Context, intent models.SeatIntent) error {
	if intent.UserID == 0 || intent.ShowtimeID == 0 {
		return fmt.Errorf("%w: intent without user or showtime", apperr.ErrInvalidInput)
	}

	switch intent.Action {
	case models.IntentHold:
		_, err := s.HoldSeats(ctx, intent.UserID, intent.ShowtimeID, intent.SeatIDs)
		return err
	case models.IntentRelease:
		_, err := s.Release(ctx, intent.UserID, intent.ShowtimeID, intent.SeatIDs)
		return err
	default:
		return fmt.Errorf("%w: unknown action %q", apperr.ErrInvalidInput, intent.Action)
	}
}

func (s *HoldService) acquire(ctx context.Context, userID, showtimeID, seatID int64) (cache.AcquireResult, error) {
	return s.store.Acquire(ctx, userID, showtimeID, seatID, s.cfg.Limit, cache.HoldTimings{
		TTL:   s.cfg.TTL,
		Grace: s.cfg.Grace,
	})
}

func (s *HoldService) switchIfNeeded(ctx context.Context, userID, showtimeID int64) error {
	active, err := s.store.ActiveShowtime(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to read active showtime: %w", err)
	}
	if active == 0 || active == showtimeID {
		return nil
	}

	released, err := s.SwitchShowtime(ctx, userID, active)
	if err != nil {
		return err
	}
	logger.WithContext(ctx).Info("Released holds on showtime switch",
		"user_id", userID, "from_showtime_id", active, "to_showtime_id", showtimeID, "seats", len(released))
	return nil
}

func (s *HoldService) announceRelease(ctx context.Context, userID, showtimeID int64, seatIDs []int64, reason string) {
	if len(seatIDs) == 0 {
		return
	}
	metrics.ReleasesTotal.WithLabelValues(reason).Add(float64(len(seatIDs)))
	s.publish(ctx, models.SeatEvent{
		Type:       models.EventSeatReleased,
		ShowtimeID: showtimeID,
		SeatIDs:    seatIDs,
		Status:     models.SeatAvailable,
		UserID:     userID,
		Reason:     reason,
	})
}

// publish never fails the caller: the state change already committed.
func (s *HoldService) publish(ctx context.Context, ev models.SeatEvent) {
	if err := s.events.PublishSeatEvent(ctx, ev); err != nil {
		slog.Warn("Failed to publish seat event",
			"type", ev.Type, "showtime_id", ev.ShowtimeID, "error", err)
	}
}
