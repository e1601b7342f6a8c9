package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	apperr "seatkeeper/internal/errors"
	"seatkeeper/internal/logger"
	"seatkeeper/internal/models"

	"github.com/gin-gonic/gin"
)

// HoldEngine - операции удержания мест
type HoldEngine interface {
	HoldSeats(ctx context.Context, userID, showtimeID int64, seatIDs []int64) ([]models.HoldOutcomeItem, error)
	Release(ctx context.Context, userID, showtimeID int64, seatIDs []int64) ([]int64, error)
	HeldSeats(ctx context.Context, showtimeID int64) ([]models.HeldSeat, error)
	UserSeats(ctx context.Context, userID, showtimeID int64) (*models.MyHoldsResponse, error)
	RemainingTTL(ctx context.Context, userID, showtimeID int64) (time.Duration, error)
}

// Scheduler - операции планирования сеансов
type Scheduler interface {
	Create(ctx context.Context, req models.CreateShowtimeRequest) (*models.Showtime, error)
	BatchCreate(ctx context.Context, req models.BatchCreateRequest) (*models.BatchCreateResponse, error)
	Update(ctx context.Context, id int64, req models.UpdateShowtimeRequest) (*models.Showtime, error)
	Cancel(ctx context.Context, id int64) (string, error)
	Get(ctx context.Context, id int64) (*models.Showtime, error)
	Search(ctx context.Context, req models.SearchShowtimesRequest) ([]models.Showtime, error)
}

// AvailabilityReader - представление доступности мест
type AvailabilityReader interface {
	Availability(ctx context.Context, showtimeID int64) (*models.SeatAvailabilityView, error)
}

type Handlers struct {
	holds        HoldEngine
	showtimes    Scheduler
	availability AvailabilityReader
}

func NewHandlers(holds HoldEngine, showtimes Scheduler, availability AvailabilityReader) *Handlers {
	return &Handlers{
		holds:        holds,
		showtimes:    showtimes,
		availability: availability,
	}
}

// handleServiceError переводит ошибки сервисов в HTTP ответы
func (h *Handlers) handleServiceError(c *gin.Context, err error, msg string) {
	var conflict *apperr.ConflictError
	var slots *apperr.TimeslotConflictError

	switch {
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{
			"error":                   conflict.Error(),
			"conflicting_showtime_id": conflict.ConflictingShowtimeID,
		})
	case errors.As(err, &slots):
		c.JSON(http.StatusConflict, gin.H{
			"error":            slots.Error(),
			"first_slot":       slots.First,
			"second_slot":      slots.Second,
			"required_gap_min": int(slots.RequiredGap.Minutes()),
			"actual_gap_min":   int(slots.ActualGap.Minutes()),
		})
	case errors.Is(err, apperr.ErrSeatLimitReached):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrSeatUnavailable),
		errors.Is(err, apperr.ErrShowtimeHasHolds),
		errors.Is(err, apperr.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrHallInactive),
		errors.Is(err, apperr.ErrOutsideReleaseWindow),
		errors.Is(err, apperr.ErrStartInPast):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	case errors.Is(err, apperr.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
	case errors.Is(err, apperr.ErrStoreUnavailable):
		logger.WithContext(c.Request.Context()).Error(msg, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Seat holds are temporarily unavailable"})
	default:
		logger.WithContext(c.Request.Context()).Error(msg, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}

func showtimeID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid showtime id"})
		return 0, false
	}
	return id, true
}

func currentUser(c *gin.Context) (int64, bool) {
	id, ok := logger.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return 0, false
	}
	return id, true
}
