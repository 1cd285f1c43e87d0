// Package hub tracks live connection clients keyed by handle id and pushes
// encoded frames to them. It knows nothing about users or conversations;
// that mapping lives in the presence registry.
package hub

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidechat/realtime/internal/logging"
)

// ErrClientNotFound is returned when a handle has no live client.
var ErrClientNotFound = errors.New("client not found")

// Client is one live connection. Send must not block; a slow peer drops
// frames instead of stalling fanout.
type Client interface {
	ID() string
	Send(message []byte) error
	Close() error
}

// Stats is a point-in-time view of hub activity.
type Stats struct {
	ConnectedClients int     `json:"connected_clients"`
	MessagesSent     int64   `json:"messages_sent"`
	MessagesDropped  int64   `json:"messages_dropped"`
	Uptime           float64 `json:"uptime_seconds"`
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]Client
	logger  *logging.Logger

	messagesSent    int64
	messagesDropped int64
	startTime       time.Time
}

func New(logger *logging.Logger) *Hub {
	return &Hub{
		clients:   make(map[string]Client),
		logger:    logger,
		startTime: time.Now(),
	}
}

// Register adds a client. A duplicate handle id is rejected.
func (h *Hub) Register(client Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.clients[client.ID()]; exists {
		return errors.New("client already registered")
	}

	h.clients[client.ID()] = client
	h.logger.Info("client registered",
		"client_id", client.ID(),
		"total_clients", len(h.clients),
	)
	return nil
}

// Unregister removes and closes a client.
func (h *Hub) Unregister(handleID string) {
	h.mu.Lock()
	client, ok := h.clients[handleID]
	if ok {
		delete(h.clients, handleID)
	}
	total := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}

	client.Close()
	h.logger.Info("client unregistered",
		"client_id", handleID,
		"total_clients", total,
	)
}

// SendTo pushes a frame to one handle.
func (h *Hub) SendTo(handleID string, message []byte) error {
	h.mu.RLock()
	client, ok := h.clients[handleID]
	h.mu.RUnlock()

	if !ok {
		return ErrClientNotFound
	}

	if err := client.Send(message); err != nil {
		atomic.AddInt64(&h.messagesDropped, 1)
		h.logger.Warn("failed to send to client",
			"client_id", handleID,
			"error", err,
		)
		return err
	}

	atomic.AddInt64(&h.messagesSent, 1)
	return nil
}

// SendToMany pushes a frame to several handles, best effort.
func (h *Hub) SendToMany(handleIDs []string, message []byte) {
	for _, id := range handleIDs {
		if err := h.SendTo(id, message); err != nil {
			h.logger.Debug("skipping handle", "client_id", id, "error", err)
		}
	}
}

// Broadcast pushes a frame to every live client.
func (h *Hub) Broadcast(message []byte) {
	h.mu.RLock()
	clients := make([]Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if err := client.Send(message); err != nil {
			atomic.AddInt64(&h.messagesDropped, 1)
			h.logger.Warn("broadcast send failed",
				"client_id", client.ID(),
				"error", err,
			)
			continue
		}
		atomic.AddInt64(&h.messagesSent, 1)
	}
}

// Close shuts down every live client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]Client)
	h.mu.Unlock()

	for _, client := range clients {
		client.Close()
	}
	h.logger.Info("hub closed", "clients_closed", len(clients))
}

// GetStats returns current hub counters.
func (h *Hub) GetStats() Stats {
	h.mu.RLock()
	connected := len(h.clients)
	h.mu.RUnlock()

	return Stats{
		ConnectedClients: connected,
		MessagesSent:     atomic.LoadInt64(&h.messagesSent),
		MessagesDropped:  atomic.LoadInt64(&h.messagesDropped),
		Uptime:           time.Since(h.startTime).Seconds(),
	}
}
