package service

import (
	"context"
	"fmt"
	"log/slog"

	apperr "seatkeeper/internal/errors"
	"seatkeeper/internal/messaging"
	"seatkeeper/internal/metrics"
	"seatkeeper/internal/models"
)

// ShowtimeReader loads a showtime, returning nil when it does not exist.
type ShowtimeReader interface {
	GetByID(ctx context.Context, id int64) (*models.Showtime, error)
}

// ReservationStore persists confirmed seat reservations.
type ReservationStore interface {
	Confirm(ctx context.Context, showtimeID, bookingID, userID int64, seatIDs []int64) ([]int64, error)
	Remove(ctx context.Context, showtimeID int64, seatIDs []int64) ([]int64, error)
	ConfirmedSeats(ctx context.Context, showtimeID int64) ([]int64, error)
	CountByShowtime(ctx context.Context, showtimeID int64) (int, error)
}

// HallReader loads halls and their seat maps.
type HallReader interface {
	GetByID(ctx context.Context, id int64) (*models.Hall, error)
	Seats(ctx context.Context, hallID int64) ([]models.Seat, error)
}

// SeatHolds is what reservation reconciliation needs from the hold engine.
type SeatHolds interface {
	Promote(ctx context.Context, userID, showtimeID int64, seatIDs []int64) error
	HeldSeatMap(ctx context.Context, showtimeID int64) (map[int64]int64, error)
}

// ReservationService reconciles confirmed bookings and refunds with the
// durable reservation table and the live hold state.
type ReservationService struct {
	showtimes    ShowtimeReader
	reservations ReservationStore
	halls        HallReader
	holds        SeatHolds
	events       messaging.SeatEventPublisher
}

func NewReservationService(showtimes ShowtimeReader, reservations ReservationStore, halls HallReader, holds SeatHolds, events messaging.SeatEventPublisher) *ReservationService {
	return &ReservationService{
		showtimes:    showtimes,
		reservations: reservations,
		halls:        halls,
		holds:        holds,
		events:       events,
	}
}

// CreateSeatReservations records a confirmed booking. Seats that already
// have a reservation are left untouched.
func (s *ReservationService) CreateSeatReservations(ctx context.Context, ev models.BookingConfirmedEvent) error {
	if len(ev.SeatIDs) == 0 {
		return fmt.Errorf("%w: booking %d has no seats", apperr.ErrInvalidInput, ev.BookingID)
	}

	if _, err := s.requireShowtime(ctx, ev.ShowtimeID); err != nil {
		slog.Error("Booking confirmed for unknown showtime",
			"booking_id", ev.BookingID, "showtime_id", ev.ShowtimeID, "error", err)
		return err
	}

	inserted, err := s.reservations.Confirm(ctx, ev.ShowtimeID, ev.BookingID, ev.UserID, ev.SeatIDs)
	if err != nil {
		return fmt.Errorf("failed to create reservations: %w", err)
	}
	metrics.ReservationsTotal.WithLabelValues("confirm").Add(float64(len(inserted)))

	if err := s.holds.Promote(ctx, ev.UserID, ev.ShowtimeID, ev.SeatIDs); err != nil {
		// Reservation is committed; leftover holds expire on their own.
		slog.Warn("Failed to clear holds for booked seats",
			"booking_id", ev.BookingID, "showtime_id", ev.ShowtimeID, "error", err)
	}

	s.publish(ctx, models.SeatEvent{
		Type:       models.EventSeatBooked,
		ShowtimeID: ev.ShowtimeID,
		SeatIDs:    ev.SeatIDs,
		Status:     models.SeatConfirmed,
		UserID:     ev.UserID,
	})

	slog.Info("Seat reservations created",
		"booking_id", ev.BookingID, "showtime_id", ev.ShowtimeID,
		"requested", len(ev.SeatIDs), "inserted", len(inserted))
	return nil
}

// ReleaseSeatReservations removes refunded seats and returns them to sale.
func (s *ReservationService) ReleaseSeatReservations(ctx context.Context, ev models.RefundProcessedEvent) ([]int64, error) {
	if _, err := s.requireShowtime(ctx, ev.ShowtimeID); err != nil {
		slog.Error("Refund for unknown showtime", "showtime_id", ev.ShowtimeID, "error", err)
		return nil, err
	}

	removed, err := s.reservations.Remove(ctx, ev.ShowtimeID, ev.SeatIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to release reservations: %w", err)
	}
	if len(removed) == 0 {
		return nil, nil
	}
	metrics.ReservationsTotal.WithLabelValues("refund").Add(float64(len(removed)))
	metrics.ReleasesTotal.WithLabelValues(models.ReasonRefund).Add(float64(len(removed)))

	s.publish(ctx, models.SeatEvent{
		Type:       models.EventSeatReleased,
		ShowtimeID: ev.ShowtimeID,
		SeatIDs:    removed,
		Status:     models.SeatAvailable,
		Reason:     models.ReasonRefund,
	})

	slog.Info("Seat reservations released", "showtime_id", ev.ShowtimeID, "seats", removed)
	return removed, nil
}

// Availability merges the hall's seats with live holds and reservations.
// A confirmed seat is reported CONFIRMED even if a stale hold remains.
func (s *ReservationService) Availability(ctx context.Context, showtimeID int64) (*models.SeatAvailabilityView, error) {
	st, err := s.requireShowtime(ctx, showtimeID)
	if err != nil {
		return nil, err
	}

	seats, err := s.halls.Seats(ctx, st.HallID)
	if err != nil {
		return nil, fmt.Errorf("failed to load hall seats: %w", err)
	}
	held, err := s.holds.HeldSeatMap(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	confirmedIDs, err := s.reservations.ConfirmedSeats(ctx, showtimeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load reservations: %w", err)
	}
	confirmed := make(map[int64]bool, len(confirmedIDs))
	for _, id := range confirmedIDs {
		confirmed[id] = true
	}

	view := &models.SeatAvailabilityView{
		ShowtimeID: showtimeID,
		Seats:      make([]models.SeatState, 0, len(seats)),
	}
	for _, seat := range seats {
		state := models.SeatState{SeatID: seat.ID, Row: seat.Row, Number: seat.Number, Status: models.SeatAvailable}
		switch holder, isHeld := held[seat.ID]; {
		case confirmed[seat.ID]:
			state.Status = models.SeatConfirmed
		case isHeld:
			state.Status = models.SeatHeld
			state.HeldBy = holder
		}
		view.Seats = append(view.Seats, state)
	}
	return view, nil
}

func (s *ReservationService) requireShowtime(ctx context.Context, id int64) (*models.Showtime, error) {
	st, err := s.showtimes.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get showtime: %w", err)
	}
	if st == nil {
		return nil, fmt.Errorf("showtime %d: %w", id, apperr.ErrNotFound)
	}
	return st, nil
}

func (s *ReservationService) publish(ctx context.Context, ev models.SeatEvent) {
	if err := s.events.PublishSeatEvent(ctx, ev); err != nil {
		slog.Warn("Failed to publish seat event",
			"type", ev.Type, "showtime_id", ev.ShowtimeID, "error", err)
	}
}
