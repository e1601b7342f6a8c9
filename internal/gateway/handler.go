package gateway

import (
	"net/http"
	"strconv"

	"seatkeeper/internal/logger"

	"github.com/fasthttp/websocket"
	"github.com/gin-gonic/gin"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// ServeWS upgrades GET /ws/showtimes/:id and joins the showtime room.
func (h *Hub) ServeWS(c *gin.Context) {
	showtimeID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || showtimeID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid showtime id"})
		return
	}
	userID, _ := logger.UserIDFromContext(c.Request.Context())

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("Websocket upgrade failed", "showtime_id", showtimeID, "error", err)
		return
	}

	if err := h.Serve(c.Request.Context(), showtimeID, userID, conn); err != nil {
		h.log.Error("Viewer session failed", "showtime_id", showtimeID, "user_id", userID, "error", err)
	}
}
