package server

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/soyeahso/ghagent/internal/hooks"
	"github.com/soyeahso/ghagent/internal/logging"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
)

// EventFrame is one turn lifecycle event sent to websocket subscribers.
type EventFrame struct {
	Seq int64 `json:"seq"`
	hooks.Payload
}

// EventHub fans turn lifecycle events out to websocket subscribers. Clients
// only receive; anything they send is discarded.
type EventHub struct {
	upgrader websocket.Upgrader
	log      *logging.Logger

	mu      sync.RWMutex
	clients map[string]*eventClient
	seq     atomic.Int64
}

// eventClient queues frames for its write pump, which is the only goroutine
// writing to conn.
type eventClient struct {
	id   string
	conn *websocket.Conn
	send chan EventFrame

	done chan struct{}
	once sync.Once
}

func newEventClient(conn *websocket.Conn) *eventClient {
	return &eventClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan EventFrame, sendBuffer),
		done: make(chan struct{}),
	}
}

// enqueue reports false when the client's buffer is full.
func (c *eventClient) enqueue(f EventFrame) bool {
	select {
	case c.send <- f:
		return true
	default:
		return false
	}
}

// close signals the write pump to say goodbye and close the connection.
func (c *eventClient) close() {
	c.once.Do(func() { close(c.done) })
}

// NewEventHub creates a hub accepting browser connections from the given
// origins.
func NewEventHub(allowedOrigins []string, log *logging.Logger) *EventHub {
	return &EventHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
		log:     log,
		clients: make(map[string]*eventClient),
	}
}

// checkOrigin accepts requests without an Origin header and those whose
// Origin is listed. "*" allows any origin.
func checkOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
	}
}

// Attach subscribes the hub to every turn lifecycle event of m.
func (h *EventHub) Attach(m *hooks.Manager) {
	if m == nil {
		return
	}
	for _, event := range hooks.AllEvents {
		if err := m.On(event, "server.events", h.handle); err != nil {
			h.log.Warn().Err(err).Str("event", event).Msg("failed to subscribe")
		}
	}
}

func (h *EventHub) handle(_ context.Context, p hooks.Payload) error {
	h.Broadcast(p)
	return nil
}

// Broadcast queues p for all connected clients without waiting on any of
// them. Clients whose buffer is full are dropped.
func (h *EventHub) Broadcast(p hooks.Payload) {
	frame := EventFrame{Seq: h.seq.Add(1), Payload: p}

	h.mu.RLock()
	clients := make([]*eventClient, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if !c.enqueue(frame) {
			h.log.Warn().Str("connId", c.id).Int64("seq", frame.Seq).Msg("event subscriber too slow, dropping")
			h.remove(c)
		}
	}
}

// Count returns the number of connected clients.
func (h *EventHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll disconnects every client.
func (h *EventHub) CloseAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*eventClient)
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

func (h *EventHub) add(c *eventClient) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.log.Debug().Str("connId", c.id).Msg("event subscriber connected")
}

func (h *EventHub) remove(c *eventClient) {
	h.mu.Lock()
	_, ok := h.clients[c.id]
	delete(h.clients, c.id)
	h.mu.Unlock()
	if ok {
		c.close()
		h.log.Debug().Str("connId", c.id).Msg("event subscriber disconnected")
	}
}

// ServeHTTP upgrades the request and holds the connection open until the
// client goes away.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(4096)

	c := newEventClient(conn)
	h.add(c)
	defer h.remove(c)
	go h.writePump(c)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

// writePump drains c.send and pings the client until c is closed or a write
// fails.
func (h *EventHub) writePump(c *eventClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case <-c.done:
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		case f := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(f); err != nil {
				h.log.Warn().Err(err).Str("connId", c.id).Msg("event send failed")
				h.remove(c)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				h.remove(c)
				return
			}
		}
	}
}
