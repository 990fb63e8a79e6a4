package websocket

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"pixvault/infrastructure/eventbus"
	"pixvault/pkg/logger"
)

type WebSocketHandler struct{}

func NewWebSocketHandler() *WebSocketHandler {
	return &WebSocketHandler{}
}

func (h *WebSocketHandler) WebSocketUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

func (h *WebSocketHandler) HandleWebSocket(c *websocket.Conn) {
	userID, err := uuid.Parse(c.Query("owner", ""))
	if err != nil {
		logger.WebSocket("rejected", "Connection without valid owner id", map[string]interface{}{
			"owner": c.Query("owner", ""),
		})
		_ = c.Close()
		return
	}

	eventbus.Manager.RegisterClient(c, userID)
	defer eventbus.Manager.UnregisterClient(c)

	for {
		messageType, message, err := c.ReadMessage()
		if err != nil {
			break
		}
		eventbus.HandleMessage(c, messageType, message)
	}
}
