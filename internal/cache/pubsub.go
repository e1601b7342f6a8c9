package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"seatkeeper/internal/models"

	"github.com/redis/go-redis/v9"
)

// IntentChannel carries hold/release requests from gateways to the engine
const IntentChannel = "seat_intents"

// EventChannel is the pub/sub channel for one event type of one showtime.
func EventChannel(eventType string, showtimeID int64) string {
	return fmt.Sprintf("%s:%d", eventType, showtimeID)
}

// PublishSeatEvent publishes the event on its "<type>:<showtimeId>" channel.
func (s *HoldStore) PublishSeatEvent(ctx context.Context, ev models.SeatEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal seat event: %w", err)
	}
	if err := s.client.Publish(ctx, EventChannel(ev.Type, ev.ShowtimeID), payload).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// PublishIntent forwards a client intent to the engine.
func (s *HoldStore) PublishIntent(ctx context.Context, intent models.SeatIntent) error {
	payload, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("failed to marshal seat intent: %w", err)
	}
	if err := s.client.Publish(ctx, IntentChannel, payload).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// SubscribeRoom streams every seat event of a showtime in publish order.
// The channel is closed once ctx is cancelled.
func (s *HoldStore) SubscribeRoom(ctx context.Context, showtimeID int64) (<-chan models.SeatEvent, error) {
	channels := make([]string, len(models.SeatEventTypes))
	for i, t := range models.SeatEventTypes {
		channels[i] = EventChannel(t, showtimeID)
	}
	return subscribeJSON[models.SeatEvent](ctx, s.client, channels...)
}

// SubscribeIntents streams client intents published by gateways.
func (s *HoldStore) SubscribeIntents(ctx context.Context) (<-chan models.SeatIntent, error) {
	return subscribeJSON[models.SeatIntent](ctx, s.client, IntentChannel)
}

// SubscribeExpired streams the names of keys that expired in this database.
// Keyspace notifications are switched on best effort; managed Redis
// deployments may forbid CONFIG SET and need them enabled out of band.
func (s *HoldStore) SubscribeExpired(ctx context.Context) (<-chan string, error) {
	if err := s.client.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err(); err != nil {
		slog.Warn("Could not enable keyspace notifications", "error", err)
	}

	ps := s.client.Subscribe(ctx, fmt.Sprintf("__keyevent@%d__:expired", s.db))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, unavailable(err)
	}

	out := make(chan string)
	go func() {
		defer close(out)
		defer ps.Close()

		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func subscribeJSON[T any](ctx context.Context, client *redis.Client, channels ...string) (<-chan T, error) {
	ps := client.Subscribe(ctx, channels...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, unavailable(err)
	}

	out := make(chan T)
	go func() {
		defer close(out)
		defer ps.Close()

		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var v T
				if err := json.Unmarshal([]byte(msg.Payload), &v); err != nil {
					slog.Warn("Dropping malformed pub/sub message", "channel", msg.Channel, "error", err)
					continue
				}
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
