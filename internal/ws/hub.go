package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Topics clients can subscribe to.
const TopicStaff = "staff"

// Event types pushed to subscribers.
const (
	EventOrderCreated               = "order.created"
	EventOrderStatusChanged         = "order.status_changed"
	EventServiceRequestCreated      = "service_request.created"
	EventServiceRequestAcknowledged = "service_request.acknowledged"
	EventTableStatusChanged         = "table.status_changed"
	EventInvoiceCreated             = "invoice.created"
)

// ErrHubStopped is returned by Publish once Run has returned.
var ErrHubStopped = errors.New("websocket hub stopped")

// TableTopic is the topic a customer device at tableID listens on.
func TableTopic(tableID uuid.UUID) string {
	return "table:" + tableID.String()
}

// Event represents a WebSocket message to be broadcast
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type topicEvent struct {
	topic string
	event Event
}

// Hub maintains the set of active clients per topic and fans events out to
// them. A single goroutine (Run) owns all room mutations.
type Hub struct {
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *topicEvent

	done chan struct{}
	once sync.Once

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *topicEvent, 256),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until ctx is cancelled, then
// closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.topic] == nil {
				h.rooms[client.topic] = make(map[*Client]bool)
			}
			h.rooms[client.topic][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()

		case ev := <-h.broadcast:
			message, err := json.Marshal(ev.event)
			if err != nil {
				continue
			}
			h.mu.Lock()
			for client := range h.rooms[ev.topic] {
				select {
				case client.send <- message:
				default:
					// slow consumer
					h.removeLocked(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) removeLocked(client *Client) {
	clients, ok := h.rooms[client.topic]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.topic)
	}
}

func (h *Hub) shutdown() {
	h.once.Do(func() {
		close(h.done)
		h.mu.Lock()
		for _, clients := range h.rooms {
			for client := range clients {
				h.removeLocked(client)
			}
		}
		h.mu.Unlock()
	})
}

// Publish queues an event for every subscriber of topic.
func (h *Hub) Publish(topic, eventType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}
	select {
	case h.broadcast <- &topicEvent{topic: topic, event: Event{Type: eventType, Payload: raw}}:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

// Subscribers returns the number of clients currently listening on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[topic])
}
