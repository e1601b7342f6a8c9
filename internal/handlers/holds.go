package handlers

import (
	"errors"
	"net/http"
	"time"

	apperr "seatkeeper/internal/errors"
	"seatkeeper/internal/models"

	"github.com/gin-gonic/gin"
)

// HoldSeats - POST /api/showtimes/:id/holds
// Удержать места на сеансе
func (h *Handlers) HoldSeats(c *gin.Context) {
	id, ok := showtimeID(c)
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.HoldSeatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	results, err := h.holds.HoldSeats(ctx, userID, id, req.SeatIDs)
	if err != nil {
		if errors.Is(err, apperr.ErrSeatLimitReached) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error(), "results": results})
			return
		}
		h.handleServiceError(c, err, "Failed to hold seats")
		return
	}

	ttl, err := h.holds.RemainingTTL(ctx, userID, id)
	if err != nil {
		h.handleServiceError(c, err, "Failed to hold seats")
		return
	}

	c.JSON(http.StatusOK, models.HoldSeatsResponse{
		Results:   results,
		ExpiresIn: int64(ttl / time.Second),
	})
}

// ReleaseSeats - DELETE /api/showtimes/:id/holds
// Освободить удерживаемые места
func (h *Handlers) ReleaseSeats(c *gin.Context) {
	id, ok := showtimeID(c)
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.HoldSeatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	released, err := h.holds.Release(c.Request.Context(), userID, id, req.SeatIDs)
	if err != nil {
		h.handleServiceError(c, err, "Failed to release seats")
		return
	}

	c.JSON(http.StatusOK, gin.H{"released": released})
}

// ListHolds - GET /api/showtimes/:id/holds
// Все удерживаемые места сеанса
func (h *Handlers) ListHolds(c *gin.Context) {
	id, ok := showtimeID(c)
	if !ok {
		return
	}

	held, err := h.holds.HeldSeats(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err, "Failed to list holds")
		return
	}

	c.JSON(http.StatusOK, gin.H{"showtime_id": id, "holds": held})
}

// MyHolds - GET /api/showtimes/:id/holds/me
// Места текущего пользователя и оставшееся время
func (h *Handlers) MyHolds(c *gin.Context) {
	id, ok := showtimeID(c)
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	response, err := h.holds.UserSeats(c.Request.Context(), userID, id)
	if err != nil {
		h.handleServiceError(c, err, "Failed to list holds")
		return
	}

	c.JSON(http.StatusOK, response)
}

// SeatAvailability - GET /api/showtimes/:id/seats
// Состояние всех мест сеанса
func (h *Handlers) SeatAvailability(c *gin.Context) {
	id, ok := showtimeID(c)
	if !ok {
		return
	}

	view, err := h.availability.Availability(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err, "Failed to load seats")
		return
	}

	c.JSON(http.StatusOK, view)
}
