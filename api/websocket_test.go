package api

import (
	"testing"
	"time"
)

func hubHasClient(h *WSHub, client *WSClient) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[client]
}

func TestHubBroadcast(t *testing.T) {
	h := NewWSHub()
	go h.Run()

	client := &WSClient{hub: h, send: make(chan WSMessage, 8)}
	h.Register(client)

	h.Broadcast(WSMessage{Type: "pipeline_event"})

	select {
	case msg := <-client.send:
		if msg.Type != "pipeline_event" {
			t.Errorf("Type = %q", msg.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast never reached the client")
	}
}

func TestHubSendToEvictedClient(t *testing.T) {
	h := NewWSHub()
	go h.Run()

	client := &WSClient{hub: h, send: make(chan WSMessage, 1)}
	h.Register(client)

	// Fill the client's buffer so the next broadcast marks it slow and
	// evicts it, closing its send channel.
	client.send <- WSMessage{Type: "fill"}
	h.Broadcast(WSMessage{Type: "evict"})

	deadline := time.After(2 * time.Second)
	for hubHasClient(h, client) {
		select {
		case <-deadline:
			t.Fatal("slow client never evicted")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// A pong answered after eviction must be dropped, not sent onto the
	// closed channel.
	h.Send(client, WSMessage{Type: "pong"})
}
