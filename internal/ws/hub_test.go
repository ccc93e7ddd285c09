package ws

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

// mockClient creates a client for testing without a real WebSocket connection
func mockClient(hub *Hub, topic string) *Client {
	return &Client{
		hub:   hub,
		topic: topic,
		send:  make(chan []byte, sendBuffer),
	}
}

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func TestHubRegistration(t *testing.T) {
	hub, _ := startHub(t)
	client := mockClient(hub, TopicStaff)

	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	if got := hub.Subscribers(TopicStaff); got != 1 {
		t.Fatalf("subscribers: got %d, want 1", got)
	}
}

func TestHubUnregistration(t *testing.T) {
	hub, _ := startHub(t)
	client := mockClient(hub, TopicStaff)

	hub.register <- client
	time.Sleep(10 * time.Millisecond)
	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()
	if hub.rooms[TopicStaff] != nil {
		t.Fatal("room not cleaned up after last client unregistered")
	}
	if _, ok := <-client.send; ok {
		t.Fatal("send channel should be closed")
	}
}

func TestPublishOnlyReachesTopic(t *testing.T) {
	hub, _ := startHub(t)
	tableID := uuid.New()

	staff := mockClient(hub, TopicStaff)
	table := mockClient(hub, TableTopic(tableID))
	other := mockClient(hub, TableTopic(uuid.New()))
	hub.register <- staff
	hub.register <- table
	hub.register <- other
	time.Sleep(10 * time.Millisecond)

	payload := map[string]string{"order_id": "o-1"}
	if err := hub.Publish(TableTopic(tableID), EventOrderCreated, payload); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case msg := <-table.send:
		var received Event
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Fatalf("failed to unmarshal message: %v", err)
		}
		if received.Type != EventOrderCreated {
			t.Errorf("type: got %q, want %q", received.Type, EventOrderCreated)
		}
		if string(received.Payload) != `{"order_id":"o-1"}` {
			t.Errorf("payload: got %s", received.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("table client did not receive message")
	}

	for name, c := range map[string]*Client{"staff": staff, "other": other} {
		select {
		case <-c.send:
			t.Fatalf("%s client should not have received the table event", name)
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestPublishToManySubscribers(t *testing.T) {
	hub, _ := startHub(t)
	clients := []*Client{mockClient(hub, TopicStaff), mockClient(hub, TopicStaff), mockClient(hub, TopicStaff)}
	for _, c := range clients {
		hub.register <- c
	}
	time.Sleep(10 * time.Millisecond)

	if err := hub.Publish(TopicStaff, EventTableStatusChanged, map[string]string{"status": "free"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for i, c := range clients {
		select {
		case <-c.send:
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("client%d did not receive message", i+1)
		}
	}
}

func TestSlowClientIsDropped(t *testing.T) {
	hub, _ := startHub(t)
	slow := &Client{hub: hub, topic: TopicStaff, send: make(chan []byte, 1)}
	hub.register <- slow
	time.Sleep(10 * time.Millisecond)

	for i := 0; i < 3; i++ {
		if err := hub.Publish(TopicStaff, EventOrderCreated, i); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	time.Sleep(20 * time.Millisecond)

	if got := hub.Subscribers(TopicStaff); got != 0 {
		t.Fatalf("slow client should be dropped, subscribers=%d", got)
	}
}

func TestPublishAfterStop(t *testing.T) {
	hub, cancel := startHub(t)
	client := mockClient(hub, TopicStaff)
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	cancel()
	time.Sleep(10 * time.Millisecond)

	if err := hub.Publish(TopicStaff, EventOrderCreated, nil); !errors.Is(err, ErrHubStopped) {
		t.Fatalf("publish after stop: got %v, want ErrHubStopped", err)
	}
	if _, ok := <-client.send; ok {
		t.Fatal("client should be closed on shutdown")
	}
}

func TestPublishRejectsUnmarshalablePayload(t *testing.T) {
	hub, _ := startHub(t)
	if err := hub.Publish(TopicStaff, EventOrderCreated, make(chan int)); err == nil {
		t.Fatal("expected marshal error")
	}
}
