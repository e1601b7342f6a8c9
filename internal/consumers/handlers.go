package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	apperr "seatkeeper/internal/errors"
	"seatkeeper/internal/messaging"
	"seatkeeper/internal/models"

	"github.com/nats-io/stan.go"
)

// Reservations applies booking and refund outcomes to the seat map.
type Reservations interface {
	CreateSeatReservations(ctx context.Context, ev models.BookingConfirmedEvent) error
	ReleaseSeatReservations(ctx context.Context, ev models.RefundProcessedEvent) ([]int64, error)
}

// IntentHandler executes hold and release intents forwarded by gateways.
type IntentHandler interface {
	HandleIntent(ctx context.Context, intent models.SeatIntent) error
}

type Handlers struct {
	reservations Reservations
	intents      IntentHandler
}

func NewHandlers(reservations Reservations, intents IntentHandler) *Handlers {
	return &Handlers{reservations: reservations, intents: intents}
}

// HandleBookingConfirmed turns a confirmed booking into CONFIRMED seats.
func (h *Handlers) HandleBookingConfirmed(ctx context.Context, body []byte) error {
	var event models.BookingConfirmedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("%w: booking confirmed payload: %v", apperr.ErrInvalidInput, err)
	}

	slog.Info("Processing booking confirmed event",
		"booking_id", event.BookingID, "showtime_id", event.ShowtimeID, "seats", len(event.SeatIDs))

	return h.reservations.CreateSeatReservations(ctx, event)
}

// HandleRefundProcessed frees the refunded seats.
func (h *Handlers) HandleRefundProcessed(ctx context.Context, body []byte) error {
	var event models.RefundProcessedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("%w: refund processed payload: %v", apperr.ErrInvalidInput, err)
	}

	slog.Info("Processing refund processed event",
		"showtime_id", event.ShowtimeID, "seats", len(event.SeatIDs))

	released, err := h.reservations.ReleaseSeatReservations(ctx, event)
	if err != nil {
		return err
	}
	if len(released) == 0 {
		slog.Debug("Refund matched no reservations", "showtime_id", event.ShowtimeID)
	}
	return nil
}

// RunIntents executes intents until the stream closes or ctx ends.
func (h *Handlers) RunIntents(ctx context.Context, intents <-chan models.SeatIntent) {
	slog.Info("Intent worker started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("Intent worker stopped")
			return
		case intent, ok := <-intents:
			if !ok {
				slog.Warn("Intent stream closed")
				return
			}
			if err := h.intents.HandleIntent(ctx, intent); err != nil {
				slog.Warn("Failed to execute seat intent",
					"action", intent.Action, "user_id", intent.UserID, "showtime_id", intent.ShowtimeID, "error", err)
			}
		}
	}
}

// Permanent reports whether redelivering the message cannot help.
func Permanent(err error) bool {
	return errors.Is(err, apperr.ErrInvalidInput) || errors.Is(err, apperr.ErrNotFound)
}

// NATSHandler adapts a body handler to a manual-ack stan subscription.
// Transient failures are left unacked so the server redelivers them.
func NATSHandler(ctx context.Context, subject string, h messaging.DeliveryHandler) stan.MsgHandler {
	return func(m *stan.Msg) {
		if err := h(ctx, m.Data); err != nil {
			if !Permanent(err) {
				slog.Error("Failed to handle message, awaiting redelivery", "subject", subject, "error", err)
				return
			}
			slog.Warn("Dropping unprocessable message", "subject", subject, "error", err)
		}
		if err := m.Ack(); err != nil {
			slog.Error("Failed to ack message", "subject", subject, "error", err)
		}
	}
}
