package realtime

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 64 * 1024
	sendBuffer = 64
)

// connection is one browser tab.
type connection struct {
	id     string
	userID string
	conn   *websocket.Conn
	send   chan []byte
}

// Hub tracks every open socket per user. A user may have several tabs open.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]map[string]*connection // userID -> connID -> connection
}

func NewHub() *Hub {
	return &Hub{
		connections: make(map[string]map[string]*connection),
	}
}

func (h *Hub) register(c *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.connections[c.userID]
	if !ok {
		conns = make(map[string]*connection)
		h.connections[c.userID] = conns
	}
	conns[c.id] = c
}

func (h *Hub) unregister(c *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.connections[c.userID]
	if !ok {
		return
	}
	if existing, ok := conns[c.id]; ok && existing == c {
		delete(conns, c.id)
		close(c.send)
	}
	if len(conns) == 0 {
		delete(h.connections, c.userID)
	}
}

// Publish sends ev to all sockets of userID. Slow sockets miss the event.
func (h *Hub) Publish(userID string, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("event=ws_marshal_failed user_id=%s type=%s error=%v", userID, ev.Type, err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.connections[userID] {
		select {
		case c.send <- data:
		default:
			log.Printf("event=ws_send_skipped user_id=%s conn_id=%s type=%s", userID, c.id, ev.Type)
		}
	}
}

// Connections returns how many sockets userID has open.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[userID])
}

// Serve registers conn and blocks until the client goes away.
func (h *Hub) Serve(conn *websocket.Conn, userID string) {
	c := &connection{
		id:     uuid.NewString(),
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
	}
	h.register(c)
	log.Printf("event=ws_connected user_id=%s conn_id=%s", userID, c.id)

	go h.writePump(c)
	h.readPump(c)
	log.Printf("event=ws_disconnected user_id=%s conn_id=%s", userID, c.id)
}

func (h *Hub) readPump(c *connection) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("event=ws_read_failed user_id=%s conn_id=%s error=%v", c.userID, c.id, err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.reply(c, NewEvent(EventError, errorPayload{Code: "INVALID_JSON", Message: "Failed to parse message"}))
			continue
		}
		switch msg.Type {
		case "ping":
			h.reply(c, NewEvent(EventPong, nil))
		default:
			h.reply(c, NewEvent(EventError, errorPayload{Code: "UNKNOWN_TYPE", Message: "Unknown message type: " + msg.Type}))
		}
	}
}

func (h *Hub) reply(c *connection, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if conns := h.connections[c.userID]; conns != nil && conns[c.id] == c {
		select {
		case c.send <- data:
		default:
		}
	}
}

func (h *Hub) writePump(c *connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
