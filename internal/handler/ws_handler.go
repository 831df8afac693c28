package handler

import (
	"github.com/yourorg/crypto-alerts/internal/ws"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WSHandler upgrades HTTP requests to websocket subscriptions
type WSHandler struct {
	hub    *ws.Hub
	logger *zap.Logger
}

// NewWSHandler creates a new websocket handler
func NewWSHandler(hub *ws.Hub, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		hub:    hub,
		logger: logger,
	}
}

// Subscribe handles the websocket endpoint
// GET /ws
func (h *WSHandler) Subscribe(c *gin.Context) {
	if err := h.hub.HandleConnection(c.Writer, c.Request); err != nil {
		// Upgrade failures already wrote the HTTP response
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
	}
}
