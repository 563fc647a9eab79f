// internal/websocket/hub.go
package websocket

import (
	"context"
	"sync"

	"subscription-service/internal/domain/auth"
	"subscription-service/internal/domain/subscription"
	wstypes "subscription-service/internal/domain/websocket"

	"go.uber.org/zap"
)

// Authenticator resolves a bearer token to a principal
type Authenticator interface {
	ValidateToken(ctx context.Context, token string) (*auth.Principal, error)
}

type Hub struct {
	// Registered clients by user ID
	clients map[int64]map[*Client]bool
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage
	done       chan struct{}

	auth   Authenticator
	logger *zap.Logger
}

type BroadcastMessage struct {
	// UserIDs nil means every connected user
	UserIDs []int64
	Channel wstypes.ChannelType
	Message *wstypes.WSMessage
}

func NewHub(authenticator Authenticator, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[int64]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
		done:       make(chan struct{}),
		auth:       authenticator,
		logger:     logger.With(zap.String("component", "websocket_hub")),
	}
}

// Authenticate validates the token a connecting client presented
func (h *Hub) Authenticate(ctx context.Context, token string) (*auth.Principal, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	return h.auth.ValidateToken(ctx, token)
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// Register hands a connected client to the hub loop
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish pushes a lifecycle event to the owning user's connections.
// It never blocks on the hub loop.
func (h *Hub) Publish(ctx context.Context, event subscription.Event) error {
	msg := &BroadcastMessage{
		UserIDs: []int64{event.UserID},
		Channel: wstypes.ChannelSubscriptions,
		Message: wstypes.NewMessage(wstypes.EventType(event.Type), event),
	}
	select {
	case h.broadcast <- msg:
		return nil
	default:
		return ErrHubBacklog
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	if h.clients[client.userID] == nil {
		h.clients[client.userID] = make(map[*Client]bool)
	}
	h.clients[client.userID][client] = true
	total := h.totalClients()
	h.mu.Unlock()

	h.logger.Info("client connected",
		zap.Int64("user_id", client.userID),
		zap.String("jti", client.tokenID),
		zap.Int("total", total),
	)

	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeConnected, map[string]interface{}{
		"user_id":  client.userID,
		"username": client.username,
		"channels": []wstypes.ChannelType{wstypes.ChannelSubscriptions},
	}))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.clients[client.userID]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	client.Close()
	if len(clients) == 0 {
		delete(h.clients, client.userID)
	}

	h.logger.Info("client disconnected",
		zap.Int64("user_id", client.userID),
		zap.Int("total", h.totalClients()),
	)
}

func (h *Hub) deliver(msg *BroadcastMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	send := func(clients map[*Client]bool) {
		for client := range clients {
			if client.IsSubscribed(msg.Channel) {
				client.SendMessage(msg.Message)
			}
		}
	}

	if msg.UserIDs == nil {
		for _, clients := range h.clients {
			send(clients)
		}
		return
	}
	for _, userID := range msg.UserIDs {
		send(h.clients[userID])
	}
}

func (h *Hub) ConnectedClients(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalClients()
}

// DisconnectToken closes the connections opened with a revoked token
func (h *Hub) DisconnectToken(userID int64, tokenID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.clients[userID]
	for client := range clients {
		if client.tokenID != tokenID {
			continue
		}
		client.SendMessage(wstypes.NewMessage(wstypes.EventTypeDisconnected, map[string]interface{}{
			"reason": "logged out",
		}))
		client.Close()
		delete(clients, client)
	}
	if len(clients) == 0 {
		delete(h.clients, userID)
	}
}

func (h *Hub) totalClients() int {
	total := 0
	for _, clients := range h.clients {
		total += len(clients)
	}
	return total
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.clients {
		for client := range clients {
			client.Close()
		}
	}
	h.clients = make(map[int64]map[*Client]bool)
}
