// Package stream pushes simulator snapshots to websocket clients.
package stream

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/danielpatrickdp/sim-state/go-engine/internal/sim"
)

const (
	MessageTypeSnapshot = "snapshot"
	MessageTypeEnd      = "end"

	DefaultWriteTimeout = 2 * time.Second
)

// Message is the envelope of every frame sent to clients.
type Message struct {
	Type string          `json:"type"`
	Tick int64           `json:"tick"`
	Data json.RawMessage `json:"data,omitempty"`
}

// #region client
// client serializes writes to one connection; gorilla allows a single writer.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(data []byte, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(timeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *client) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}

// #endregion client

// #region hub
// Hub is an HTTP handler accepting websocket subscribers and a sim.Observer
// broadcasting a snapshot after every tick. Clients that fail a write are dropped.
// Late subscribers receive the most recent frame on connect.
type Hub struct {
	upgrader     websocket.Upgrader
	writeTimeout time.Duration

	mu      sync.Mutex
	clients map[*client]struct{}
	last    []byte
	closed  bool
}

// NewHub creates a hub accepting any origin.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		writeTimeout: DefaultWriteTimeout,
		clients:      make(map[*client]struct{}),
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("stream: upgrade %s: %v", r.RemoteAddr, err)
		return
	}
	c := &client{conn: conn}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	last := h.last
	h.mu.Unlock()

	if last != nil {
		if err := c.write(last, h.writeTimeout); err != nil {
			h.drop(c)
			return
		}
	}

	// Subscribers only listen; reading detects the peer going away.
	go func() {
		defer h.drop(c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		c.close()
	}
}

// Broadcast sends msg to every subscriber and remembers it for late joiners.
func (h *Hub) Broadcast(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.last = data
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		if err := c.write(data, h.writeTimeout); err != nil {
			log.Printf("stream: dropping client %s: %v", c.conn.RemoteAddr(), err)
			h.drop(c)
		}
	}
	return nil
}

// Close disconnects every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for _, c := range targets {
		c.close()
	}
}

// #endregion hub

// #region observer
func (h *Hub) Start(s *sim.Simulator) {}

func (h *Hub) Step(s *sim.Simulator) {
	data, err := json.Marshal(s.Snapshot())
	if err != nil {
		log.Printf("stream: tick %d: %v", s.Tick(), err)
		return
	}
	h.Broadcast(Message{Type: MessageTypeSnapshot, Tick: s.Tick(), Data: data})
}

func (h *Hub) End(s *sim.Simulator) {
	h.Broadcast(Message{Type: MessageTypeEnd, Tick: s.Tick()})
}

// #endregion observer
