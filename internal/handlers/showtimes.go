package handlers

import (
	"net/http"
	"strconv"

	"seatkeeper/internal/models"

	"github.com/gin-gonic/gin"
)

// CreateShowtime - POST /api/showtimes
// Создать сеанс
func (h *Handlers) CreateShowtime(c *gin.Context) {
	var req models.CreateShowtimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	st, err := h.showtimes.Create(c.Request.Context(), req)
	if err != nil {
		h.handleServiceError(c, err, "Failed to create showtime")
		return
	}

	c.JSON(http.StatusCreated, st)
}

// BatchCreateShowtimes - POST /api/showtimes/batch
// Создать серию сеансов
func (h *Handlers) BatchCreateShowtimes(c *gin.Context) {
	var req models.BatchCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	response, err := h.showtimes.BatchCreate(c.Request.Context(), req)
	if err != nil {
		h.handleServiceError(c, err, "Failed to create showtimes")
		return
	}

	c.JSON(http.StatusCreated, response)
}

// UpdateShowtime - PATCH /api/showtimes/:id
// Перенести сеанс
func (h *Handlers) UpdateShowtime(c *gin.Context) {
	id, ok := showtimeID(c)
	if !ok {
		return
	}

	var req models.UpdateShowtimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.HallID == nil && req.StartTime == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}

	st, err := h.showtimes.Update(c.Request.Context(), id, req)
	if err != nil {
		h.handleServiceError(c, err, "Failed to update showtime")
		return
	}

	c.JSON(http.StatusOK, st)
}

// CancelShowtime - DELETE /api/showtimes/:id
// Отменить или удалить сеанс
func (h *Handlers) CancelShowtime(c *gin.Context) {
	id, ok := showtimeID(c)
	if !ok {
		return
	}

	result, err := h.showtimes.Cancel(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err, "Failed to cancel showtime")
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "result": result})
}

// GetShowtime - GET /api/showtimes/:id
// Получить сеанс
func (h *Handlers) GetShowtime(c *gin.Context) {
	id, ok := showtimeID(c)
	if !ok {
		return
	}

	st, err := h.showtimes.Get(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err, "Failed to get showtime")
		return
	}

	c.JSON(http.StatusOK, st)
}

// ListShowtimes - GET /api/showtimes
// Поиск сеансов
func (h *Handlers) ListShowtimes(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	if page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page must be >= 1"})
		return
	}

	if pageSize < 1 || pageSize > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pageSize must be between 1 and 100"})
		return
	}

	movieID, _ := strconv.ParseInt(c.Query("movie_id"), 10, 64)
	hallID, _ := strconv.ParseInt(c.Query("hall_id"), 10, 64)

	response, err := h.showtimes.Search(c.Request.Context(), models.SearchShowtimesRequest{
		MovieID:  movieID,
		HallID:   hallID,
		Date:     c.Query("date"),
		Status:   c.Query("status"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		h.handleServiceError(c, err, "Failed to list showtimes")
		return
	}

	c.JSON(http.StatusOK, response)
}
