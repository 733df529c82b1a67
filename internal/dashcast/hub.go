// File: internal/dashcast/hub.go
// Brief: WebSocket client registry with per-client send queues and slow-reader eviction.

package dashcast

import (
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"

	"github.com/example/leakwatch/internal/metrics"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	readLimit    = 64 * 1024
	sendQueueLen = 256
)

type hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	logger  logr.Logger
	metrics *metrics.Metrics
}

func newHub(logger logr.Logger, m *metrics.Metrics) *hub {
	return &hub{clients: make(map[*client]struct{}), logger: logger, metrics: m}
}

func (h *hub) Register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.metrics.SetWebClients(n)
}

func (h *hub) Unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	h.metrics.SetWebClients(n)
	c.Close()
}

func (h *hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues msg for every client; a client whose queue is full is
// disconnected rather than allowed to stall the others.
func (h *hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Info("dropping dashboard client for slow reader")
			go h.Unregister(c)
		}
	}
}

func (h *hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.Close()
		delete(h.clients, c)
	}
	h.metrics.SetWebClients(0)
}

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	logger logr.Logger
	once   sync.Once
	done   chan struct{}
}

func newClient(conn *websocket.Conn, logger logr.Logger) *client {
	return &client{conn: conn, send: make(chan []byte, sendQueueLen), logger: logger, done: make(chan struct{})}
}

func (c *client) Close() {
	c.once.Do(func() {
		if c.done != nil {
			close(c.done)
		}
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

func (c *client) readLoop(onMessage func([]byte), onClose func()) {
	defer onClose()
	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.V(1).Info("dashboard client read error", "err", err)
			}
			return
		}
		if onMessage != nil {
			onMessage(data)
		}
	}
}

func (c *client) writeLoop() {
	ticker := time.NewTicker((pongWait * 9) / 10)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logger.V(1).Info("dashboard client write error", "err", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
