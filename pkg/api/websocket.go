package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dixieflatline76/AetherDesk/pkg/engine"
	"github.com/dixieflatline76/AetherDesk/util/log"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 16
)

// client is one WebSocket connection. Only writePump writes to conn.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

type message struct {
	Type   string         `json:"type"`
	Status *engine.Status `json:"status,omitempty"`
}

func encode(m message) []byte {
	data, err := json.Marshal(m)
	if err != nil {
		log.Printf("Failed to encode %s message: %v", m.Type, err)
		return nil
	}
	return data
}

func statusMessage(st engine.Status) []byte {
	return encode(message{Type: "status", Status: &st})
}

// handleWebSocket upgrades the connection, sends the current status and then
// streams every change. Clients may send {"type":"ping"} as a keepalive.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	s.clientsMu.Lock()
	s.clients[c] = true
	s.clientsMu.Unlock()
	defer s.drop(c)

	go c.writePump()
	s.deliver(c, statusMessage(s.ctl.Status()))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var msg message
		if json.Unmarshal(data, &msg) == nil && msg.Type == "ping" {
			s.deliver(c, encode(message{Type: "pong"}))
		}
	}
}

func (c *client) writePump() {
	defer c.conn.Close()
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Debugf("WebSocket write failed: %v", err)
			return
		}
	}
}

// drop unregisters c and ends its writer.
func (s *Server) drop(c *client) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	if s.clients[c] {
		delete(s.clients, c)
		close(c.send)
	}
}

// deliver queues data for c without blocking. The caller must not hold
// clientsMu.
func (s *Server) deliver(c *client, data []byte) {
	if data == nil {
		return
	}
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	s.queueLocked(c, data)
}

func (s *Server) queueLocked(c *client, data []byte) {
	if !s.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
		// A client this far behind is gone or stuck.
		log.Printf("Dropping slow WebSocket client %s", c.conn.RemoteAddr())
		delete(s.clients, c)
		close(c.send)
	}
}

// broadcastStatus sends a status message to every connected client.
func (s *Server) broadcastStatus(st engine.Status) {
	data := statusMessage(st)
	if data == nil {
		return
	}
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for c := range s.clients {
		s.queueLocked(c, data)
	}
}
