package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	websocketHandler "pixvault/interfaces/api/websocket"
)

func SetupWebSocketRoutes(app *fiber.App) {
	wsHandler := websocketHandler.NewWebSocketHandler()

	// Owner identity comes from the "owner" query parameter, browsers
	// cannot set headers on WebSocket upgrades.
	app.Use("/ws", wsHandler.WebSocketUpgrade)
	app.Get("/ws", websocket.New(wsHandler.HandleWebSocket))
}
