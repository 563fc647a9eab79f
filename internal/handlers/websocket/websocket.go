// internal/handlers/websocket/websocket.go
package handlers

import (
	"net/http"
	"time"

	"subscription-service/internal/middleware"
	"subscription-service/internal/pkg/response"
	ws "subscription-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type WebSocketHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWebSocketHandler allows browser origins listed in allowedOrigins ("*" for any).
func NewWebSocketHandler(hub *ws.Hub, allowedOrigins []string, logger *zap.Logger) *WebSocketHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
		logger: logger,
	}
}

// HandleConnection authenticates, upgrades and hands the client to the hub
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	// Browsers cannot set headers on the upgrade request
	token := c.Query("token")
	if token == "" {
		token = middleware.ExtractToken(c)
	}
	if token == "" {
		response.Unauthorized(c, "missing authentication token")
		return
	}

	principal, err := h.hub.Authenticate(c.Request.Context(), token)
	if err != nil {
		h.logger.Warn("websocket authentication failed",
			zap.Error(err),
			zap.String("ip", c.ClientIP()),
		)
		response.Unauthorized(c, "authentication failed")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			zap.Error(err),
			zap.String("ip", c.ClientIP()),
		)
		return
	}

	client := ws.NewClient(h.hub, conn, principal.UserID, principal.Username, principal.TokenID)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

// Stats returns connection counts
func (h *WebSocketHandler) Stats(c *gin.Context) {
	response.Success(c, http.StatusOK, "websocket stats", gin.H{
		"total_connections": h.hub.TotalClients(),
		"timestamp":         time.Now().UTC(),
	})
}
