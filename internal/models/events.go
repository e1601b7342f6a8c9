package models

import "time"

// Seat event types. Each is published on the "<type>:<showtimeId>" channel.
const (
	EventSeatHeld         = "seat_held"
	EventSeatReleased     = "seat_released"
	EventSeatExpired      = "seat_expired"
	EventSeatBooked       = "seat_booked"
	EventSeatLimitReached = "seat_limit_reached"
)

// SeatEventTypes lists every event a showtime room subscribes to
var SeatEventTypes = []string{
	EventSeatHeld,
	EventSeatReleased,
	EventSeatExpired,
	EventSeatBooked,
	EventSeatLimitReached,
}

// Release reasons
const (
	ReasonUser           = "USER"
	ReasonShowtimeSwitch = "SHOWTIME_SWITCH"
	ReasonExpired        = "EXPIRED"
	ReasonRefund         = "REFUND"
)

// Seat statuses in the availability view and in events
const (
	SeatAvailable = "AVAILABLE"
	SeatHeld      = "HELD"
	SeatConfirmed = "CONFIRMED"
)

// Inbound broker queues
const (
	QueueBookingConfirmed = "booking.confirmed"
	QueueRefundProcessed  = "refund.processed"
)

// SeatEvent carries the full resulting state of the listed seats
type SeatEvent struct {
	Type       string    `json:"type"`
	ShowtimeID int64     `json:"showtime_id"`
	SeatIDs    []int64   `json:"seat_ids"`
	Status     string    `json:"status,omitempty"`
	UserID     int64     `json:"user_id,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Limit      int       `json:"limit,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Seat intent actions
const (
	IntentHold    = "hold"
	IntentRelease = "release"
)

// SeatIntent is a client request forwarded from the gateway to the hold engine
type SeatIntent struct {
	Action     string    `json:"action"`
	UserID     int64     `json:"user_id"`
	ShowtimeID int64     `json:"showtime_id"`
	SeatIDs    []int64   `json:"seat_ids"`
	Timestamp  time.Time `json:"timestamp"`
}

// BookingConfirmedEvent arrives from the booking service after payment
type BookingConfirmedEvent struct {
	BookingID  int64   `json:"booking_id"`
	UserID     int64   `json:"user_id"`
	ShowtimeID int64   `json:"showtime_id"`
	SeatIDs    []int64 `json:"seat_ids"`
}

// RefundProcessedEvent arrives from the payment service after a refund
type RefundProcessedEvent struct {
	BookingID  int64   `json:"booking_id,omitempty"`
	ShowtimeID int64   `json:"showtime_id"`
	SeatIDs    []int64 `json:"seat_ids"`
}
