package server

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/OCAP2/dronesim/internal/sim"
	"github.com/OCAP2/dronesim/pkg/streaming"
)

const clientBuffer = 64

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans simulation notifications out to live-feed websocket clients.
// It implements sim.Listener.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}

	// snapshotEvery throttles the per-tick snapshot stream; zero sends all.
	snapshotEvery time.Duration
	lastSnapshot  time.Time

	logger *slog.Logger
}

// NewHub creates a hub that forwards at most one snapshot per snapshotEvery.
func NewHub(snapshotEvery time.Duration, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:       make(map[*client]struct{}),
		snapshotEvery: snapshotEvery,
		logger:        logger,
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) OnStatus(e sim.StatusEvent) {
	h.broadcast(streaming.TypeStatusEvent, e)
}

func (h *Hub) OnCommand(e sim.CommandEvent) {
	h.broadcast(streaming.TypeCommandEvent, e)
}

func (h *Hub) OnSnapshot(s sim.Snapshot) {
	if h.snapshotEvery > 0 {
		h.mu.Lock()
		now := time.Now()
		if now.Sub(h.lastSnapshot) < h.snapshotEvery {
			h.mu.Unlock()
			return
		}
		h.lastSnapshot = now
		h.mu.Unlock()
	}
	h.broadcast(streaming.TypeSnapshot, s)
}

func (h *Hub) broadcast(msgType string, payload any) {
	data, err := encode(msgType, payload)
	if err != nil {
		h.logger.Error("encoding live feed message", "type", msgType, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Debug("live feed client too slow, dropping message", "type", msgType)
		}
	}
}

func (h *Hub) register(conn *websocket.Conn) *client {
	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	go c.writeLoop()
	h.logger.Info("live feed client connected", "clients", n)
	return c
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("live feed client disconnected", "clients", n)
}

// sendTo queues a message for a single client.
func (h *Hub) sendTo(c *client, msgType string, payload any) {
	data, err := encode(msgType, payload)
	if err != nil {
		h.logger.Error("encoding live feed message", "type", msgType, "error", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *client) writeLoop() {
	defer c.conn.Close()
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func encode(msgType string, payload any) ([]byte, error) {
	env, err := streaming.NewEnvelope("", msgType, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}
