package errors

import (
	"errors"
	"fmt"
	"time"
)

var ErrUnauthorized = errors.New("user is not authorized")
var ErrForbidden = errors.New("operation is forbidden for user")

var ErrNotFound = errors.New("not found")
var ErrInvalidInput = errors.New("invalid input")
var ErrStoreUnavailable = errors.New("hold store unavailable")

// Seat holds
var ErrSeatLimitReached = errors.New("seat hold limit reached")
var ErrSeatUnavailable = errors.New("seat is already held")

// Showtime scheduling
var ErrShowtimeConflict = errors.New("showtime overlaps an existing showtime in the hall")
var ErrTimeslotConflict = errors.New("time slots are closer than the showtime duration")
var ErrOutsideReleaseWindow = errors.New("showtime starts outside the movie release window")
var ErrStartInPast = errors.New("showtime cannot start in the past")
var ErrHallInactive = errors.New("hall or cinema is not active")
var ErrShowtimeHasHolds = errors.New("showtime has active seat holds")
var ErrInvalidState = errors.New("operation is not allowed in the current showtime state")

// ConflictError reports the existing showtime a new one overlaps with.
type ConflictError struct {
	ConflictingShowtimeID int64
	Start                 time.Time
	End                   time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("overlaps showtime %d (%s - %s)",
		e.ConflictingShowtimeID, e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339))
}

func (e *ConflictError) Unwrap() error { return ErrShowtimeConflict }

// TimeslotConflictError reports two batch slots that are too close together.
type TimeslotConflictError struct {
	First       string
	Second      string
	RequiredGap time.Duration
	ActualGap   time.Duration
}

func (e *TimeslotConflictError) Error() string {
	return fmt.Sprintf("slots %s and %s are %d min apart, need at least %d min",
		e.First, e.Second, int(e.ActualGap.Minutes()), int(e.RequiredGap.Minutes()))
}

func (e *TimeslotConflictError) Unwrap() error { return ErrTimeslotConflict }
