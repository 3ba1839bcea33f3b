package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	xlogger "FXPulse/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Bot and dashboard clients connect from other origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocket upgrades the connection and hands it to the hub. Clients
// identify themselves with client_id and client_type query params; the
// "bot" type additionally receives alert_triggered events.
func (h *ForexHandler) WebSocket(c echo.Context) error {
	clientID := c.QueryParam("client_id")
	if clientID == "" {
		clientID = fmt.Sprintf("client-%d", time.Now().UnixNano())
	}
	clientType := c.QueryParam("client_type")
	if clientType == "" {
		clientType = "frontend"
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", xlogger.Error(err))
		return err
	}

	h.logger.Info("websocket client connected",
		xlogger.String("client_id", clientID),
		xlogger.String("client_type", clientType))

	h.hub.ServeConn(conn, clientID, clientType)
	return nil
}
