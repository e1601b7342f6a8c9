// Package gateway fans seat events out to websocket viewers grouped into
// one room per showtime, and forwards viewer hold/release requests to the
// hold engine.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"seatkeeper/internal/logger"
	"seatkeeper/internal/metrics"
	"seatkeeper/internal/models"
)

// Message types sent to viewers
const (
	MessageSnapshot = "snapshot"
	MessageEvent    = "event"
	MessageError    = "error"
)

const defaultSendQueue = 64

// Conn is the websocket connection surface the hub needs.
type Conn interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
	Close() error
}

// RoomSource streams the seat events of one showtime until ctx ends.
type RoomSource interface {
	SubscribeRoom(ctx context.Context, showtimeID int64) (<-chan models.SeatEvent, error)
}

// IntentSink forwards viewer requests to the hold engine.
type IntentSink interface {
	PublishIntent(ctx context.Context, intent models.SeatIntent) error
}

// Snapshotter builds the availability view sent on join.
type Snapshotter interface {
	Availability(ctx context.Context, showtimeID int64) (*models.SeatAvailabilityView, error)
}

// Hub owns the showtime rooms. The mutex guards only the room map and
// member sets; no store call happens while it is held.
type Hub struct {
	source    RoomSource
	intents   IntentSink
	snapshots Snapshotter
	sendQueue int
	log       *slog.Logger

	mu    sync.Mutex
	rooms map[int64]*room
}

type room struct {
	showtimeID int64
	clients    map[*client]struct{}
	cancel     context.CancelFunc
}

func NewHub(source RoomSource, intents IntentSink, snapshots Snapshotter) *Hub {
	return &Hub{
		source:    source,
		intents:   intents,
		snapshots: snapshots,
		sendQueue: defaultSendQueue,
		log:       logger.Component("gateway"),
		rooms:     make(map[int64]*room),
	}
}

// Serve runs one viewer until its connection fails or ctx ends. userID 0
// is an anonymous viewer that may watch but not hold.
func (h *Hub) Serve(ctx context.Context, showtimeID, userID int64, conn Conn) error {
	c := newClient(userID, conn, h.sendQueue)
	defer c.close()

	if err := h.join(showtimeID, c); err != nil {
		_ = conn.WriteJSON(models.GatewayMessage{Type: MessageError, Error: "seat updates unavailable"})
		return err
	}
	defer h.leave(showtimeID, c)

	go c.writeLoop()

	// Events that arrive while the snapshot is built are sent after it.
	first := models.GatewayMessage{Type: MessageError, Error: "snapshot unavailable"}
	view, err := h.snapshots.Availability(ctx, showtimeID)
	if err != nil {
		h.log.Warn("Failed to build snapshot", "showtime_id", showtimeID, "error", err)
	} else {
		first = models.GatewayMessage{Type: MessageSnapshot, View: view}
	}
	if !c.start(first) {
		h.log.Warn("Dropping slow viewer", "showtime_id", showtimeID, "user_id", userID)
		return nil
	}

	h.readLoop(ctx, showtimeID, c)
	return nil
}

// Rooms returns the number of showtimes with viewers.
func (h *Hub) Rooms() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}

// Viewers returns the number of viewers of a showtime.
func (h *Hub) Viewers(showtimeID int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rooms[showtimeID]; ok {
		return len(r.clients)
	}
	return 0
}

func (h *Hub) join(showtimeID int64, c *client) error {
	h.mu.Lock()
	r, ok := h.rooms[showtimeID]
	if ok {
		r.clients[c] = struct{}{}
		h.mu.Unlock()
		metrics.GatewayViewers.Inc()
		return nil
	}
	h.mu.Unlock()

	// Subscribe outside the lock; a concurrent first join may win the race.
	ctx, cancel := context.WithCancel(context.Background())
	events, err := h.source.SubscribeRoom(ctx, showtimeID)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to showtime %d: %w", showtimeID, err)
	}

	h.mu.Lock()
	if existing, ok := h.rooms[showtimeID]; ok {
		existing.clients[c] = struct{}{}
		h.mu.Unlock()
		cancel()
		metrics.GatewayViewers.Inc()
		return nil
	}
	r = &room{
		showtimeID: showtimeID,
		clients:    map[*client]struct{}{c: {}},
		cancel:     cancel,
	}
	h.rooms[showtimeID] = r
	metrics.GatewayRooms.Set(float64(len(h.rooms)))
	h.mu.Unlock()
	metrics.GatewayViewers.Inc()

	go h.drain(r, events)
	h.log.Info("Room opened", "showtime_id", showtimeID)
	return nil
}

func (h *Hub) leave(showtimeID int64, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[showtimeID]
	if !ok {
		return
	}
	if _, member := r.clients[c]; !member {
		return
	}
	delete(r.clients, c)
	metrics.GatewayViewers.Dec()

	if len(r.clients) == 0 {
		r.cancel()
		delete(h.rooms, showtimeID)
		metrics.GatewayRooms.Set(float64(len(h.rooms)))
		h.log.Info("Room closed", "showtime_id", showtimeID)
	}
}

// drain forwards events in store order until the room's subscription ends.
func (h *Hub) drain(r *room, events <-chan models.SeatEvent) {
	for ev := range events {
		h.broadcast(r, ev)
	}
}

func (h *Hub) broadcast(r *room, ev models.SeatEvent) {
	h.mu.Lock()
	targets := make([]*client, 0, len(r.clients))
	for c := range r.clients {
		if ev.Type == models.EventSeatLimitReached && c.userID != ev.UserID {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.Unlock()

	msg := models.GatewayMessage{Type: MessageEvent, Event: &ev}
	for _, c := range targets {
		if !c.deliver(msg) {
			h.log.Warn("Dropping slow viewer", "showtime_id", r.showtimeID, "user_id", c.userID)
			c.close()
		}
	}
}

func (h *Hub) readLoop(ctx context.Context, showtimeID int64, c *client) {
	for {
		var msg models.ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		if err := h.forward(ctx, showtimeID, c.userID, msg); err != nil {
			c.enqueue(models.GatewayMessage{Type: MessageError, Error: err.Error()})
		}

		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}
	}
}

var (
	errAnonymous     = errors.New("sign in to hold seats")
	errUnknownAction = errors.New("unknown action")
	errNoSeats       = errors.New("seat_ids is required")
)

func (h *Hub) forward(ctx context.Context, showtimeID, userID int64, msg models.ClientMessage) error {
	if msg.Action != models.IntentHold && msg.Action != models.IntentRelease {
		return errUnknownAction
	}
	if userID == 0 {
		return errAnonymous
	}
	if len(msg.SeatIDs) == 0 {
		return errNoSeats
	}

	err := h.intents.PublishIntent(ctx, models.SeatIntent{
		Action:     msg.Action,
		UserID:     userID,
		ShowtimeID: showtimeID,
		SeatIDs:    msg.SeatIDs,
	})
	if err != nil {
		h.log.Error("Failed to forward seat intent", "showtime_id", showtimeID, "user_id", userID, "error", err)
		return errors.New("request could not be delivered")
	}
	return nil
}
