// Package eventbus fans pipeline progress events out to connected
// websocket clients, keyed by owner.
package eventbus

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"pixvault/pkg/logger"
)

// Manager is the process-wide hub.
var Manager = NewHub()

// Message is the wire envelope pushed to clients.
type Message struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

type client struct {
	conn   *websocket.Conn
	userID uuid.UUID
}

// Hub tracks connections per user and serializes writes per
// connection.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]*client
	byUser  map[uuid.UUID]map[*websocket.Conn]bool

	writeMu sync.Map // *websocket.Conn -> *sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]*client),
		byUser:  make(map[uuid.UUID]map[*websocket.Conn]bool),
	}
}

// RegisterClient adds a connection for a user.
func (h *Hub) RegisterClient(conn *websocket.Conn, userID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[conn] = &client{conn: conn, userID: userID}
	if h.byUser[userID] == nil {
		h.byUser[userID] = make(map[*websocket.Conn]bool)
	}
	h.byUser[userID][conn] = true

	logger.WebSocket("client_registered", "Client connected", map[string]interface{}{
		"user_id": userID.String(),
		"total":   len(h.clients),
	})
}

// UnregisterClient removes a connection.
func (h *Hub) UnregisterClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[conn]
	if !ok {
		return
	}
	delete(h.clients, conn)
	if conns := h.byUser[c.userID]; conns != nil {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.byUser, c.userID)
		}
	}
	h.writeMu.Delete(conn)

	logger.WebSocket("client_unregistered", "Client disconnected", map[string]interface{}{
		"user_id": c.userID.String(),
		"total":   len(h.clients),
	})
}

// BroadcastToUser sends a message to every connection of one user.
func (h *Hub) BroadcastToUser(userID uuid.UUID, messageType string, data map[string]interface{}) {
	payload, err := json.Marshal(Message{
		Type:      messageType,
		Data:      data,
		Timestamp: time.Now(),
	})
	if err != nil {
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.byUser[userID]))
	for conn := range h.byUser[userID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		h.send(conn, payload)
	}
}

// ConnectionCount reports active connections, for the health endpoint.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) send(conn *websocket.Conn, payload []byte) {
	muIface, _ := h.writeMu.LoadOrStore(conn, &sync.Mutex{})
	mu := muIface.(*sync.Mutex)

	mu.Lock()
	err := conn.WriteMessage(websocket.TextMessage, payload)
	mu.Unlock()

	if err != nil {
		// The read loop will unregister the dead connection.
		logger.WebSocket("write_failed", "Dropping message to dead connection", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// HandleMessage processes an inbound client frame. Only ping is
// meaningful; everything else is ignored.
func HandleMessage(conn *websocket.Conn, messageType int, message []byte) {
	if messageType != websocket.TextMessage {
		return
	}

	var inbound Message
	if err := json.Unmarshal(message, &inbound); err != nil {
		return
	}

	if inbound.Type == "ping" {
		payload, _ := json.Marshal(Message{Type: "pong", Timestamp: time.Now()})
		muIface, _ := Manager.writeMu.LoadOrStore(conn, &sync.Mutex{})
		mu := muIface.(*sync.Mutex)
		mu.Lock()
		_ = conn.WriteMessage(websocket.TextMessage, payload)
		mu.Unlock()
	}
}
