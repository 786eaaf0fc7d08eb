// internal/handlers/events/ws_handler.go
package events

import (
	"net/http"

	"rankpilot-service/internal/events"
	"rankpilot-service/internal/middleware"
	"rankpilot-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Admin dashboards connect from a different origin than the API.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type WSHandler struct {
	hub    *events.Hub
	logger *zap.Logger
}

func NewWSHandler(hub *events.Hub, logger *zap.Logger) *WSHandler {
	return &WSHandler{hub: hub, logger: logger}
}

// Stream upgrades an authenticated admin connection and attaches it to
// the events hub. Auth runs in middleware before this handler; browsers
// cannot set headers on websocket dials, hence the query-token fallback
// there.
func (h *WSHandler) Stream(c *gin.Context) {
	adminID := middleware.MustGetAdminID(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "websocket upgrade failed", err)
		return
	}

	h.logger.Info("events client connected", zap.Int64("admin_id", adminID))
	events.NewClient(h.hub, conn, adminID).Start()
}
