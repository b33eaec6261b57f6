package api

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"launchsentinel/internal/domain"
	"launchsentinel/internal/observability"
)

const (
	clientSendBuffer = 256
	writeTimeout     = 10 * time.Second
)

// client is one connected push-socket subscriber with a bounded outbound
// queue; a slow reader drops its own messages rather than blocking the
// broadcaster (spec §4.9 back-pressure policy).
type client struct {
	conn *websocket.Conn
	send chan domain.Event
}

// Hub fans out lifecycle events to every connected WebSocket client.
type Hub struct {
	log *logrus.Entry

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewHub builds an empty broadcast hub.
func NewHub(log *logrus.Entry) *Hub {
	return &Hub{log: log, clients: make(map[*client]struct{})}
}

// Register adds conn to the broadcast set and starts its writer goroutine.
// The returned func removes and closes the client; call it when the
// connection's read loop exits.
func (h *Hub) Register(conn *websocket.Conn) func() {
	c := &client{conn: conn, send: make(chan domain.Event, clientSendBuffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	observability.Default.WSClientsConnected.Set(float64(h.ClientCount()))

	go h.writeLoop(c)

	return func() {
		h.mu.Lock()
		if _, ok := h.clients[c]; ok {
			delete(h.clients, c)
			close(c.send)
		}
		h.mu.Unlock()
		observability.Default.WSClientsConnected.Set(float64(h.ClientCount()))
	}
}

func (h *Hub) writeLoop(c *client) {
	for evt := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteJSON(evt); err != nil {
			h.log.WithError(err).Debug("push client write failed, dropping connection")
			c.conn.Close()
			return
		}
	}
}

// Broadcast sends evt to every connected client, dropping it for any
// client whose queue is already full (spec §4.9: drop-on-overflow, never
// block the publisher).
func (h *Hub) Broadcast(evt domain.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- evt:
		default:
			h.log.Warn("client send queue full, dropping event for this subscriber")
		}
	}
}

// ClientCount reports the number of currently connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
