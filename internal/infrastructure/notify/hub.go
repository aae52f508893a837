package notify

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vitos/predictbet/internal/domain"
	"go.uber.org/zap"
)

const (
	clientBuffer = 32
	writeWait    = 5 * time.Second
)

// Hub is the websocket push channel for UI events. Broadcasts are
// fire-and-forget: a slow or dead client is dropped, never blocking the
// settlement path.
type Hub struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]bool),
	}
}

// ServeWS upgrades an HTTP request to a push connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.drop(c)
			return
		}
	}
}

// readPump drains the connection so close frames are processed.
func (h *Hub) readPump(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.drop(c)
			return
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

type event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

func (h *Hub) broadcast(eventType string, payload any) {
	data, err := json.Marshal(event{Type: eventType, Payload: payload})
	if err != nil {
		h.logger.Error("failed to marshal push event", zap.String("type", eventType), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Buffer full: drop the client rather than block.
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// domain.Notifier implementation

func (h *Hub) BalanceUpdated(userID string, newBalance int64) {
	h.broadcast("balance_updated", map[string]any{
		"user_id":     userID,
		"new_balance": newBalance,
	})
}

func (h *Hub) BetSettled(ev domain.SettledEvent) {
	h.broadcast("bet_settled", ev)
}

func (h *Hub) MarginCall(positionID, userID string, profitPercent float64) {
	h.broadcast("margin_call", map[string]any{
		"position_id":    positionID,
		"user_id":        userID,
		"profit_percent": profitPercent,
	})
}
