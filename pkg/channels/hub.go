package channels

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hagglekit/hagglekit/pkg/logger"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Event is what the hub pushes to subscribed clients: appended messages
// and out-of-band notices.
type Event struct {
	Type      string      `json:"type"` // "message" or "notice"
	SessionID string      `json:"session_id"`
	Payload   interface{} `json:"payload"`
}

type client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	sessions map[string]bool
}

// Hub fans events out to websocket clients subscribed per session.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan Event
	register   chan *client
	unregister chan *client
	sessions   map[string]map[*client]bool
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan Event, 64),
		register:   make(chan *client),
		unregister: make(chan *client),
		clients:    make(map[*client]bool),
		sessions:   make(map[string]map[*client]bool),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			h.dropClientLocked(c)
			h.mu.Unlock()
		case ev := <-h.broadcast:
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			h.mu.Lock()
			for c := range h.sessions[ev.SessionID] {
				select {
				case c.send <- data:
				default:
					// A client that cannot keep up is fully dropped so a
					// later broadcast never hits its closed channel.
					h.dropClientLocked(c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// dropClientLocked removes a client from the hub and every session it
// subscribed to, closing its send channel exactly once. Callers must
// hold the write lock.
func (h *Hub) dropClientLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	for id := range c.sessions {
		if subs, ok := h.sessions[id]; ok {
			delete(subs, c)
			if len(subs) == 0 {
				delete(h.sessions, id)
			}
		}
	}
}

// Broadcast pushes an event to every client subscribed to the session.
func (h *Hub) Broadcast(ev Event) {
	select {
	case h.broadcast <- ev:
	default:
		logger.WarnCF("channels", "Hub broadcast buffer full, dropping event",
			map[string]interface{}{"session": ev.SessionID})
	}
}

type subscribeMessage struct {
	Action    string `json:"action"` // "subscribe" or "unsubscribe"
	SessionID string `json:"session_id"`
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.DebugCF("channels", "Websocket read error", map[string]interface{}{"error": err.Error()})
			}
			break
		}

		var msg subscribeMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		switch msg.Action {
		case "subscribe":
			c.hub.mu.Lock()
			if c.hub.sessions[msg.SessionID] == nil {
				c.hub.sessions[msg.SessionID] = make(map[*client]bool)
			}
			c.hub.sessions[msg.SessionID][c] = true
			c.sessions[msg.SessionID] = true
			c.hub.mu.Unlock()
		case "unsubscribe":
			c.hub.mu.Lock()
			if subs, ok := c.hub.sessions[msg.SessionID]; ok {
				delete(subs, c)
				if len(subs) == 0 {
					delete(c.hub.sessions, msg.SessionID)
				}
			}
			delete(c.sessions, msg.SessionID)
			c.hub.mu.Unlock()
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.WriteMessage(websocket.TextMessage, message)
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs upgrades the request and attaches the client to the hub.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnCF("channels", "Websocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}
	c := &client{hub: hub, conn: conn, send: make(chan []byte, 64), sessions: make(map[string]bool)}
	hub.register <- c

	go c.writePump()
	go c.readPump()
}
