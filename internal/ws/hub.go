// Package ws is the websocket transport for live price updates. Clients
// join and leave per-symbol subscription groups with small JSON commands
// and receive price_update messages pushed by the broadcaster.
package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/yourorg/crypto-alerts/internal/model"
	"github.com/yourorg/crypto-alerts/internal/subscription"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 32
)

// ErrConnectionClosed means the target connection is gone
var ErrConnectionClosed = errors.New("websocket connection closed")

// ErrUnknownConnection means no connection with that id is registered
var ErrUnknownConnection = errors.New("unknown websocket connection")

// clientMessage is the inbound join/leave command
type clientMessage struct {
	Action string `json:"action"`
	Symbol string `json:"symbol"`
}

// serverMessage is the outbound envelope
type serverMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// connection is one live websocket client
type connection struct {
	id   string
	ws   *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func (c *connection) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

// Hub owns the live connections and wires their join/leave commands into
// the subscription registry
type Hub struct {
	registry *subscription.Registry
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[string]*connection
}

// NewHub creates a websocket hub bound to a subscription registry
func NewHub(registry *subscription.Registry, logger *zap.Logger) *Hub {
	return &Hub{
		registry: registry,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin checks belong to the boundary service in front
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[string]*connection),
	}
}

// HandleConnection upgrades an HTTP request and serves the connection until
// the client disconnects
func (h *Hub) HandleConnection(w http.ResponseWriter, r *http.Request) error {
	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("websocket upgrade failed: %w", err)
	}

	c := &connection{
		id:   uuid.NewString(),
		ws:   wsConn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()

	h.logger.Info("Websocket client connected", zap.String("conn_id", c.id))

	go h.writePump(c)
	go h.readPump(c)

	return nil
}

// SendUpdate delivers one price update to a single connection. It blocks
// until the connection's writer accepts the message or the connection
// closes; it never fails because a different connection is slow.
func (h *Hub) SendUpdate(connID string, update model.PriceUpdate) error {
	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return ErrUnknownConnection
	}

	payload, err := json.Marshal(serverMessage{Type: "price_update", Data: update})
	if err != nil {
		return err
	}

	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	}
}

// ConnectionCount returns the number of live connections
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Close terminates every live connection
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*connection, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		h.drop(c)
	}
}

// drop tears down one connection and all its subscriptions
func (h *Hub) drop(c *connection) {
	h.mu.Lock()
	_, present := h.conns[c.id]
	delete(h.conns, c.id)
	h.mu.Unlock()

	c.close()
	h.registry.DropConnection(c.id)

	if present {
		h.logger.Info("Websocket client disconnected", zap.String("conn_id", c.id))
	}
}

// readPump consumes join/leave commands until the connection dies
func (h *Hub) readPump(c *connection) {
	defer h.drop(c)

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg clientMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("Websocket read error",
					zap.String("conn_id", c.id),
					zap.Error(err))
			}
			return
		}

		if msg.Symbol == "" {
			continue
		}

		switch msg.Action {
		case "join":
			h.registry.Join(c.id, msg.Symbol)
			h.logger.Debug("Subscription joined",
				zap.String("conn_id", c.id),
				zap.String("symbol", msg.Symbol))
		case "leave":
			h.registry.Leave(c.id, msg.Symbol)
			h.logger.Debug("Subscription left",
				zap.String("conn_id", c.id),
				zap.String("symbol", msg.Symbol))
		default:
			h.logger.Debug("Ignoring unknown websocket action",
				zap.String("conn_id", c.id),
				zap.String("action", msg.Action))
		}
	}
}

// writePump writes queued messages and keepalive pings
func (h *Hub) writePump(c *connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.drop(c)
	}()

	for {
		select {
		case payload := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.logger.Debug("Websocket write failed",
					zap.String("conn_id", c.id),
					zap.Error(err))
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
