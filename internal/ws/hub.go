// Package ws fans realtime events out to websocket connections grouped by
// topic.
package ws

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/QQCPM/ChatChat/internal/realtime"
)

// ErrHubStopped is returned when publishing to a hub whose Run has returned.
var ErrHubStopped = errors.New("ws: hub stopped")

type Hub struct {
	clients    map[string]map[*Client]bool // topic -> clients
	Register   chan *Client
	Unregister chan *Client
	Broadcast  chan BroadcastMessage
	done       chan struct{}
	mu         sync.RWMutex
	log        *logrus.Entry
}

type BroadcastMessage struct {
	Topic string
	Data  []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan BroadcastMessage, 64),
		done:       make(chan struct{}),
		log:        logrus.WithField("component", "ws_hub"),
	}
}

// Run owns the client map until ctx is done, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.Register:
			h.mu.Lock()
			if h.clients[client.Topic] == nil {
				h.clients[client.Topic] = make(map[*Client]bool)
			}
			h.clients[client.Topic][client] = true
			h.mu.Unlock()
			client.log.Debug("Client registered")
		case client := <-h.Unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
		case msg := <-h.Broadcast:
			h.broadcast(msg)
		}
	}
}

func (h *Hub) broadcast(msg BroadcastMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients[msg.Topic] {
		select {
		case client.send <- msg.Data:
		default:
			client.log.Warn("Client send buffer full, disconnecting")
			h.remove(client)
		}
	}
}

// remove must be called with mu held.
func (h *Hub) remove(client *Client) {
	clients, ok := h.clients[client.Topic]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.clients, client.Topic)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.clients {
		for client := range clients {
			close(client.send)
		}
	}
	h.clients = make(map[string]map[*Client]bool)
}

// Deliver queues raw data for every client subscribed to topic.
func (h *Hub) Deliver(ctx context.Context, topic string, data []byte) error {
	select {
	case h.Broadcast <- BroadcastMessage{Topic: topic, Data: data}:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Publish implements realtime.Publisher for a single server instance.
func (h *Hub) Publish(ctx context.Context, event realtime.Event) error {
	data, err := event.Encode()
	if err != nil {
		return err
	}
	return h.Deliver(ctx, event.Topic, data)
}

// SubscriberCount returns how many connections watch topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

var _ realtime.Publisher = (*Hub)(nil)
