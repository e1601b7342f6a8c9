package service

import (
	"context"
	"fmt"
	"log/slog"

	"seatkeeper/internal/cache"
	"seatkeeper/internal/messaging"
	"seatkeeper/internal/metrics"
	"seatkeeper/internal/models"
)

// ExpiryReconciler turns hold session expiry into seat cleanup and
// seat_expired events.
type ExpiryReconciler struct {
	store  HoldStore
	events messaging.SeatEventPublisher
}

func NewExpiryReconciler(store HoldStore, events messaging.SeatEventPublisher) *ExpiryReconciler {
	return &ExpiryReconciler{store: store, events: events}
}

// Run handles expired key names until the channel closes or ctx ends.
func (r *ExpiryReconciler) Run(ctx context.Context, expired <-chan string) {
	slog.Info("Expiry reconciler started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("Expiry reconciler stopped")
			return
		case key, ok := <-expired:
			if !ok {
				slog.Warn("Expiry notification stream closed")
				return
			}
			if err := r.HandleExpiredKey(ctx, key); err != nil {
				slog.Error("Failed to reconcile expired session", "key", key, "error", err)
			}
		}
	}
}

// HandleExpiredKey reacts to one expired key. Only session markers matter;
// seat keys expiring on their own are covered by the session that owns them.
func (r *ExpiryReconciler) HandleExpiredKey(ctx context.Context, key string) error {
	userID, showtimeID, ok := cache.ParseSessionKey(key)
	if !ok {
		return nil
	}
	_, err := r.Expire(ctx, userID, showtimeID)
	return err
}

// Expire releases every seat of the session and announces them in one event.
func (r *ExpiryReconciler) Expire(ctx context.Context, userID, showtimeID int64) ([]int64, error) {
	released, err := r.store.Release(ctx, userID, showtimeID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to release expired holds: %w", err)
	}
	if len(released) == 0 {
		return nil, nil
	}

	metrics.ReleasesTotal.WithLabelValues(models.ReasonExpired).Add(float64(len(released)))
	ev := models.SeatEvent{
		Type:       models.EventSeatExpired,
		ShowtimeID: showtimeID,
		SeatIDs:    released,
		Status:     models.SeatAvailable,
		UserID:     userID,
		Reason:     models.ReasonExpired,
	}
	if err := r.events.PublishSeatEvent(ctx, ev); err != nil {
		slog.Warn("Failed to publish seat_expired", "showtime_id", showtimeID, "error", err)
	}

	slog.Info("Expired seat holds",
		"user_id", userID, "showtime_id", showtimeID, "seats", released)
	return released, nil
}

// Sweep expires sessions whose notification was missed, e.g. while no
// reconciler was subscribed.
func (r *ExpiryReconciler) Sweep(ctx context.Context) (int, error) {
	orphans, err := r.store.OrphanedSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to find orphaned sessions: %w", err)
	}

	total := 0
	for _, o := range orphans {
		released, err := r.Expire(ctx, o.UserID, o.ShowtimeID)
		if err != nil {
			return total, err
		}
		total += len(released)
	}
	return total, nil
}
