package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket upgrader with CORS support
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for development
		return true
	},
}

// CatalogUpdate is a change notification pushed to connected clients while
// the deep-loader runs. It carries no item payload; clients re-pull current
// state through the REST surface at their own pace.
type CatalogUpdate struct {
	Type       string    `json:"type"` // catalog, status
	Status     string    `json:"status"`
	Categories int       `json:"categories,omitempty"`
	TotalItems int       `json:"total_items,omitempty"`
	Message    string    `json:"message,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// WebSocketClient represents a connected WebSocket client. The send channel
// has a single close owner guarded by mu; every producer goes through
// trySend, so a broadcast racing a disconnect can never hit a closed channel.
type WebSocketClient struct {
	conn   *websocket.Conn
	send   chan CatalogUpdate
	server *Server
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// trySend queues an update for the client without blocking. Returns false
// when the client is already closed or its channel is full.
func (c *WebSocketClient) trySend(update CatalogUpdate) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- update:
		return true
	default:
		return false
	}
}

// closeSend closes the send channel exactly once. Safe to call from any
// goroutine; subsequent trySend calls are rejected instead of panicking.
func (c *WebSocketClient) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// handleWebSocket handles WebSocket connections for catalog-update
// notifications.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade WebSocket connection", "error", err)
		return
	}

	client := &WebSocketClient{
		conn:   conn,
		send:   make(chan CatalogUpdate, 256),
		server: s,
		logger: s.logger,
	}

	s.logger.Info("WebSocket client connected", "remote_addr", r.RemoteAddr)

	s.registerWSClient(client)

	go client.writePump()
	go client.readPump()

	client.sendInitialStatus()
}

// writePump handles sending messages to the WebSocket client.
// Runs in a goroutine and manages connection cleanup on error.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.server.unregisterWSClient(c)
		c.logger.Debug("WebSocket write pump stopped")
	}()

	for {
		select {
		case update, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))

			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(update); err != nil {
				c.logger.Error("WebSocket write error", "error", err)
				return
			}

		case <-ticker.C:
			// Send ping to keep connection alive
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Error("WebSocket ping error", "error", err)
				return
			}
		}
	}
}

// readPump drains client messages and maintains connection health. Clients
// have nothing to send today; the pump exists to detect closes promptly.
func (c *WebSocketClient) readPump() {
	defer func() {
		c.conn.Close()
		// Unregister before closing so new broadcasts stop picking this
		// client up; trySend guards against the ones already in flight.
		c.server.unregisterWSClient(c)
		c.closeSend()
		c.logger.Debug("WebSocket read pump stopped")
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket read error", "error", err)
			}
			return
		}

		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	}
}

// sendInitialStatus sends the current catalog summary to a newly connected
// client.
func (c *WebSocketClient) sendInitialStatus() {
	summary := c.server.catalogSummary()

	update := CatalogUpdate{
		Type:       "status",
		Status:     "connected",
		Categories: len(summary.Categories),
		TotalItems: summary.TotalItems,
		Message:    "WebSocket connected successfully",
		Timestamp:  time.Now(),
	}

	if !c.trySend(update) {
		c.logger.Warn("Failed to send initial status")
	}
}

// BroadcastCatalogUpdate sends a catalog update to all connected WebSocket
// clients. Called by the deep-loader's change notification.
func (s *Server) BroadcastCatalogUpdate(update CatalogUpdate) {
	update.Timestamp = time.Now()

	s.wsMutex.RLock()
	clients := make([]*WebSocketClient, 0, len(s.wsClients))
	for client := range s.wsClients {
		clients = append(clients, client)
	}
	s.wsMutex.RUnlock()

	s.logger.Debug("Broadcasting catalog update",
		"type", update.Type,
		"client_count", len(clients))

	for _, client := range clients {
		if !client.trySend(update) {
			client.logger.Warn("Dropped broadcast for client")
		}
	}
}
