package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/mercadito/storefront-backend/pkg/logger"
)

// ClientMessage is a message received from a subscriber.
type ClientMessage struct {
	Type string `json:"type"` // refresh
}

// CartMessage is pushed to every session of a client.
type CartMessage struct {
	Type    string      `json:"type"` // cart_updated
	Payload interface{} `json:"payload"`
}

// BroadcastMessage is queued for delivery to one client's sessions.
type BroadcastMessage struct {
	ClientID uint
	Message  []byte
}

// Hub tracks live cart subscribers keyed by client id. A client may hold
// several sessions (tabs, devices) at once.
type Hub struct {
	clients map[uint][]*Client

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage
	done       chan struct{}

	refreshMu sync.RWMutex
	refresh   func(clientID uint)

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uint][]*Client),
		register:   make(chan *Client, 256),
		unregister: make(chan *Client, 256),
		broadcast:  make(chan *BroadcastMessage, 1024),
		done:       make(chan struct{}),
	}
}

// Run dispatches registrations and broadcasts until ctx is cancelled, then
// closes every session.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ClientID] = append(h.clients[client.ClientID], client)
			sessions := len(h.clients[client.ClientID])
			h.mu.Unlock()
			logger.Info("WebSocket client registered", map[string]interface{}{
				"client_id":      client.ClientID,
				"total_sessions": sessions,
			})

		case client := <-h.unregister:
			h.remove(client)

		case message := <-h.broadcast:
			h.mu.RLock()
			var stalled []*Client
			for _, client := range h.clients[message.ClientID] {
				select {
				case client.Send <- message.Message:
				default:
					stalled = append(stalled, client)
				}
			}
			h.mu.RUnlock()

			for _, client := range stalled {
				logger.Warn("Client send buffer full, disconnecting", map[string]interface{}{
					"client_id": client.ClientID,
				})
				h.remove(client)
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	sessions := h.clients[client.ClientID]
	kept := make([]*Client, 0, len(sessions))
	found := false
	for _, c := range sessions {
		if c == client {
			found = true
			continue
		}
		kept = append(kept, c)
	}
	if found {
		if len(kept) == 0 {
			delete(h.clients, client.ClientID)
		} else {
			h.clients[client.ClientID] = kept
		}
		close(client.Send)
	}
	h.mu.Unlock()

	if found {
		logger.Info("WebSocket client unregistered", map[string]interface{}{
			"client_id":          client.ClientID,
			"remaining_sessions": len(kept),
		})
	}
}

func (h *Hub) shutdown() {
	close(h.done)
	h.drainRegistrations()

	h.mu.Lock()
	defer h.mu.Unlock()
	for clientID, sessions := range h.clients {
		for _, client := range sessions {
			close(client.Send)
		}
		delete(h.clients, clientID)
	}
	logger.Info("WebSocket hub stopped", nil)
}

// Register adds a session. After the hub stopped the session is closed at once.
func (h *Hub) Register(client *Client) {
	select {
	case <-h.done:
		close(client.Send)
		return
	default:
	}

	select {
	case h.register <- client:
	case <-h.done:
		close(client.Send)
		return
	}

	// Run may have stopped between the checks and the send.
	select {
	case <-h.done:
		h.drainRegistrations()
	default:
	}
}

// drainRegistrations closes sessions queued after Run stopped. Each queued
// session is received, and so closed, exactly once.
func (h *Hub) drainRegistrations() {
	for {
		select {
		case client := <-h.register:
			close(client.Send)
		default:
			return
		}
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// HasSubscribers reports whether clientID has at least one live session.
func (h *Hub) HasSubscribers(clientID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[clientID]) > 0
}

// SessionCount returns the number of live sessions across all clients.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, sessions := range h.clients {
		n += len(sessions)
	}
	return n
}

// NotifyCart queues payload for every session of clientID. Messages are
// dropped when the broadcast queue is full.
func (h *Hub) NotifyCart(clientID uint, payload interface{}) error {
	data, err := json.Marshal(CartMessage{Type: "cart_updated", Payload: payload})
	if err != nil {
		logger.Error("Failed to marshal cart message", err, map[string]interface{}{
			"client_id": clientID,
		})
		return err
	}

	select {
	case h.broadcast <- &BroadcastMessage{ClientID: clientID, Message: data}:
	default:
		logger.Warn("Broadcast channel full, message dropped", map[string]interface{}{
			"client_id": clientID,
		})
	}
	return nil
}

// OnRefresh sets the callback run when a session asks for the current cart.
func (h *Hub) OnRefresh(fn func(clientID uint)) {
	h.refreshMu.Lock()
	h.refresh = fn
	h.refreshMu.Unlock()
}

// HandleClientMessage processes one inbound frame from client.
func (h *Hub) HandleClientMessage(client *Client, message []byte) {
	if !client.allow(time.Now()) {
		logger.Warn("Rate limit exceeded", map[string]interface{}{
			"client_id": client.ClientID,
		})
		return
	}

	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		logger.Warn("Failed to parse client message", map[string]interface{}{
			"client_id": client.ClientID,
			"error":     err.Error(),
		})
		return
	}

	if msg.Type != "refresh" {
		return
	}

	h.refreshMu.RLock()
	fn := h.refresh
	h.refreshMu.RUnlock()
	if fn != nil {
		fn(client.ClientID)
	}
}
