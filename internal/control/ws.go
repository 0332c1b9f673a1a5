package control

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/waves-audio/engine/internal/metrics"
)

const hubBroadcastBuffer = 64

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(_ *http.Request) bool { return true },
}

// client is one subscribed WebSocket connection.
type client struct {
	id   uint64
	conn *websocket.Conn
	send chan []byte
}

// Hub fans notifications out to every connected WebSocket client, dropping
// messages to a client whose send buffer is full rather than blocking the
// broadcaster — same non-blocking-drop idiom as the engine's event senders.
type Hub struct {
	mu         sync.RWMutex
	clients    map[uint64]*client
	register   chan *client
	unregister chan uint64
	broadcastC chan []byte
}

// NewHub builds an empty Hub. Call run(ctx) to start its dispatch loop.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uint64]*client),
		register:   make(chan *client),
		unregister: make(chan uint64),
		broadcastC: make(chan []byte, hubBroadcastBuffer),
	}
}

func (h *Hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, c := range h.clients {
				close(c.send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.id] = c
			count := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(float64(count))

		case id := <-h.unregister:
			h.mu.Lock()
			if c, ok := h.clients[id]; ok {
				delete(h.clients, id)
				close(c.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(float64(count))

		case msg := <-h.broadcastC:
			h.mu.RLock()
			for _, c := range h.clients {
				select {
				case c.send <- msg:
				default:
				}
			}
			h.mu.RUnlock()
		}
	}
}

// broadcast marshals n and queues it for delivery to every connected client.
func (h *Hub) broadcast(n Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		return
	}
	metrics.NotificationsBroadcast.WithLabelValues(n.Method).Inc()
	select {
	case h.broadcastC <- data:
	default:
	}
}

// ClientCount reports the number of connected WebSocket clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

var clientIDSeq uint64

// ServeWS upgrades the HTTP connection and registers a client that both
// receives broadcast notifications and forwards inbound JSON-RPC requests
// to f.Dispatch.
func (f *Facade) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &client{
		id:   atomic.AddUint64(&clientIDSeq, 1),
		conn: conn,
		send: make(chan []byte, hubBroadcastBuffer),
	}

	f.hub.register <- c
	go f.writeLoop(c)
	f.readLoop(c)
}

func (f *Facade) writeLoop(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (f *Facade) readLoop(c *client) {
	defer func() {
		f.hub.unregister <- c.id
	}()
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		resp := f.Dispatch(context.Background(), raw)
		data, err := json.Marshal(resp)
		if err != nil {
			continue
		}
		select {
		case c.send <- data:
		default:
		}
	}
}
