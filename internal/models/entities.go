package models

import (
	"time"
)

// Showtime statuses
const (
	ShowtimeScheduled = "SCHEDULED"
	ShowtimeSelling   = "SELLING"
	ShowtimeCancelled = "CANCELLED"
	ShowtimeFinished  = "FINISHED"
)

// Day types
const (
	DayWeekday = "WEEKDAY"
	DayWeekend = "WEEKEND"
)

// Hall and cinema statuses
const (
	StatusActive   = "ACTIVE"
	StatusInactive = "INACTIVE"
)

// Reservation statuses
const (
	ReservationConfirmed = "CONFIRMED"
	ReservationCancelled = "CANCELLED"
)

// Showtime is one screening of a movie in a hall
type Showtime struct {
	ID             int64     `json:"id" db:"id"`
	HallID         int64     `json:"hall_id" db:"hall_id"`
	MovieID        int64     `json:"movie_id" db:"movie_id"`
	StartTime      time.Time `json:"start_time" db:"start_time"`
	EndTime        time.Time `json:"end_time" db:"end_time"`
	Status         string    `json:"status" db:"status"`
	DayType        string    `json:"day_type" db:"day_type"`
	TotalSeats     int       `json:"total_seats" db:"total_seats"`
	AvailableSeats int       `json:"available_seats" db:"available_seats"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// Hall represents a screening room together with its cinema status
type Hall struct {
	ID           int64  `json:"id" db:"id"`
	CinemaID     int64  `json:"cinema_id" db:"cinema_id"`
	Name         string `json:"name" db:"name"`
	Status       string `json:"status" db:"status"`
	CinemaStatus string `json:"cinema_status" db:"cinema_status"`
	SeatCount    int    `json:"seat_count" db:"seat_count"`
}

// Active reports whether showtimes may be scheduled in the hall
func (h *Hall) Active() bool {
	return h.Status == StatusActive && h.CinemaStatus == StatusActive
}

// Movie holds the fields scheduling depends on
type Movie struct {
	ID             int64     `json:"id" db:"id"`
	Title          string    `json:"title" db:"title"`
	RuntimeMinutes int       `json:"runtime_minutes" db:"runtime_minutes"`
	ReleaseStart   time.Time `json:"release_start" db:"release_start"`
	ReleaseEnd     time.Time `json:"release_end" db:"release_end"`
}

// Seat is a physical seat in a hall
type Seat struct {
	ID     int64 `json:"id" db:"id"`
	HallID int64 `json:"hall_id" db:"hall_id"`
	Row    int   `json:"row" db:"row_number"`
	Number int   `json:"number" db:"seat_number"`
}

// SeatReservation is a confirmed seat for a showtime
type SeatReservation struct {
	ID         int64     `json:"id" db:"id"`
	ShowtimeID int64     `json:"showtime_id" db:"showtime_id"`
	SeatID     int64     `json:"seat_id" db:"seat_id"`
	BookingID  int64     `json:"booking_id" db:"booking_id"`
	UserID     int64     `json:"user_id" db:"user_id"`
	Status     string    `json:"status" db:"status"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
