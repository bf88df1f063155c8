// Package hub fans domain events out to every connected monitoring console.
//
// The hub owns the live connection set. Fan-out to one connection is
// independent of all others: a peer that cannot accept a write within the
// send buffer is dropped rather than allowed to stall delivery to the rest,
// and a failed write to one peer is never reported to the publisher.
package hub

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Raje0906/Tourist-Safety-sub001/internal/feed"
)

const (
	// writeWait bounds a single write attempt to one peer.
	writeWait = 10 * time.Second
	// pongWait is how long a connection may go without answering a ping.
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	// sendBuffer is the per-connection backlog; a console further behind
	// than this is dropped.
	sendBuffer     = 32
	maxMessageSize = 4096
)

// Conn is one attached console from the hub's perspective. It never outlives
// its websocket.
type Conn struct {
	id        string
	ws        *websocket.Conn
	send      chan []byte
	hub       *Hub
	closeOnce sync.Once
}

// ID returns the opaque handle unique for the lifetime of this connection.
func (c *Conn) ID() string { return c.id }

type Hub struct {
	mu     sync.Mutex
	conns  map[*Conn]struct{}
	logger *slog.Logger
}

func New(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		conns:  make(map[*Conn]struct{}),
		logger: logger,
	}
}

// Attach wraps an upgraded websocket in a Conn, registers it, and starts its
// read and write pumps. The caller keeps no responsibility for the socket.
func (h *Hub) Attach(ws *websocket.Conn) *Conn {
	c := &Conn{
		id:   uuid.NewString(),
		ws:   ws,
		send: make(chan []byte, sendBuffer),
		hub:  h,
	}
	h.Register(c)
	go c.writePump()
	go c.readPump()
	return c
}

// Register adds a connection to the live set. It cannot fail once the
// handshake succeeded.
func (h *Hub) Register(c *Conn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	n := len(h.conns)
	h.mu.Unlock()
	h.logger.Debug("feed connection registered", "conn", c.id, "live", n)
}

// Unregister removes a connection from the live set and closes its send
// channel. The close happens under h.mu, the same lock Publish sends under,
// so a send can never hit a closed channel. Unregistering an already-removed
// connection is a no-op.
func (h *Hub) Unregister(c *Conn) {
	h.mu.Lock()
	_, ok := h.conns[c]
	if ok {
		delete(h.conns, c)
		c.closeOnce.Do(func() { close(c.send) })
	}
	n := len(h.conns)
	h.mu.Unlock()
	if !ok {
		return
	}
	h.logger.Debug("feed connection unregistered", "conn", c.id, "live", n)
}

// Publish delivers env to every registered connection. A peer whose send
// buffer is full is dropped; Publish itself never blocks beyond the
// non-blocking channel send and never fails as a whole. Sends stay under
// h.mu so they cannot race the close in Unregister.
func (h *Hub) Publish(env feed.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("marshal envelope", "kind", env.Kind, "err", err)
		return
	}

	h.mu.Lock()
	var dropped []*Conn
	for c := range h.conns {
		select {
		case c.send <- data:
		default:
			dropped = append(dropped, c)
		}
	}
	for _, c := range dropped {
		delete(h.conns, c)
		c.closeOnce.Do(func() { close(c.send) })
	}
	h.mu.Unlock()

	for _, c := range dropped {
		h.logger.Warn("dropping slow feed connection", "conn", c.id, "kind", env.Kind)
	}
}

// Broadcast implements feed.Broadcaster.
func (h *Hub) Broadcast(env feed.Envelope) { h.Publish(env) }

// Len reports the number of live connections.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Close drops every live connection. Used on server shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()
	for _, c := range conns {
		h.Unregister(c)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Unregistered; tell the peer we are going away.
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.hub.Unregister(c)
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.Unregister(c)
				return
			}
		}
	}
}

// readPump drains inbound frames. Consoles only consume the feed; anything
// they send is discarded. A read error of any sort ends the connection.
func (c *Conn) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.ws.Close()
	}()
	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}
