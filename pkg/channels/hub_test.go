package channels

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func subscribeClient(h *Hub, c *client, sessionID string) {
	h.register <- c
	h.mu.Lock()
	if h.sessions[sessionID] == nil {
		h.sessions[sessionID] = make(map[*client]bool)
	}
	h.sessions[sessionID][c] = true
	c.sessions[sessionID] = true
	h.mu.Unlock()
}

func TestHubDropsSlowSubscriberWithoutPanic(t *testing.T) {
	h := NewHub()
	go h.Run()

	// A subscriber with no buffer and no reader cannot accept anything.
	slow := &client{hub: h, send: make(chan []byte), sessions: make(map[string]bool)}
	subscribeClient(h, slow, "s1")

	// The first broadcast drops the slow client; the second must not
	// reach its closed send channel.
	h.Broadcast(Event{Type: "notice", SessionID: "s1", Payload: "one"})
	h.Broadcast(Event{Type: "notice", SessionID: "s1", Payload: "two"})

	require.Eventually(t, func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		_, inClients := h.clients[slow]
		_, inSessions := h.sessions["s1"]
		return !inClients && !inSessions
	}, time.Second, 5*time.Millisecond)
}

func TestHubKeepsHealthySubscriberWhenSlowOneDrops(t *testing.T) {
	h := NewHub()
	go h.Run()

	slow := &client{hub: h, send: make(chan []byte), sessions: make(map[string]bool)}
	healthy := &client{hub: h, send: make(chan []byte, 8), sessions: make(map[string]bool)}
	subscribeClient(h, slow, "s1")
	subscribeClient(h, healthy, "s1")

	h.Broadcast(Event{Type: "message", SessionID: "s1", Payload: "first"})
	h.Broadcast(Event{Type: "message", SessionID: "s1", Payload: "second"})

	for i := 0; i < 2; i++ {
		select {
		case data := <-healthy.send:
			assert.NotEmpty(t, data)
		case <-time.After(time.Second):
			require.Failf(t, "timeout", "healthy subscriber missed broadcast %d", i+1)
		}
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	assert.NotContains(t, h.clients, slow)
	assert.Contains(t, h.clients, healthy)
	assert.Contains(t, h.sessions["s1"], healthy)
}
