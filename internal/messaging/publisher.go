package messaging

import (
	"context"
	"log/slog"
	"time"

	"seatkeeper/internal/models"
)

// SeatEventPublisher delivers seat events to one transport.
type SeatEventPublisher interface {
	PublishSeatEvent(ctx context.Context, ev models.SeatEvent) error
}

// Fanout publishes to a primary transport and mirrors to secondary ones.
// Only primary failures are returned; mirror failures are logged.
type Fanout struct {
	primary SeatEventPublisher
	mirrors []SeatEventPublisher
}

func NewFanout(primary SeatEventPublisher, mirrors ...SeatEventPublisher) *Fanout {
	return &Fanout{primary: primary, mirrors: mirrors}
}

func (f *Fanout) PublishSeatEvent(ctx context.Context, ev models.SeatEvent) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	err := f.primary.PublishSeatEvent(ctx, ev)

	for _, m := range f.mirrors {
		if mErr := m.PublishSeatEvent(ctx, ev); mErr != nil {
			slog.Warn("Failed to mirror seat event",
				"type", ev.Type, "showtime_id", ev.ShowtimeID, "error", mErr)
		}
	}
	return err
}
