// internal/events/hub.go
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"rankpilot-service/internal/domain/subscription"

	"go.uber.org/zap"
)

// Message is the wire envelope pushed to connected dashboards.
type Message struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// Hub fans subscription change events out to connected admin dashboard
// clients. Publish never blocks the transition path: slow consumers are
// dropped, not waited on.
type Hub struct {
	clients map[*Client]bool
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	publish    chan *Message

	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		publish:    make(chan *Message, 256),
		logger:     logger,
	}
}

// PublishSubscriptionChanged enqueues a change event for broadcast.
func (h *Hub) PublishSubscriptionChanged(ev subscription.ChangedEvent) {
	msg := &Message{
		Type:      "subscription.changed",
		Timestamp: time.Now(),
		Payload:   ev,
	}
	select {
	case h.publish <- msg:
	default:
		h.logger.Warn("events hub queue full, dropping event",
			zap.String("user_id", ev.UserID),
		)
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Info("events client connected", zap.Int64("admin_id", client.adminID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case msg := <-h.publish:
			h.broadcast(msg)
		}
	}
}

func (h *Hub) broadcast(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal event message", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			// Slow consumer; drop this frame for them.
		}
	}
}

// ClientCount reports currently connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}
