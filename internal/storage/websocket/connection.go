package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/OCAP2/dronesim/pkg/streaming"
)

const (
	controlChSize = 1_024
	ackChSize     = 16
	maxReconnect  = 10
	maxBackoff    = 30 * time.Second
	writeWait     = 10 * time.Second
)

// outbound is one encoded envelope with its enqueue order.
type outbound struct {
	seq  uint64
	data []byte
}

// Stats counts what the connection did with outgoing messages.
type Stats struct {
	Sent      uint64
	Coalesced uint64 // vehicle states replaced by a newer one before sending
	Dropped   uint64 // control or event messages lost to a full queue
}

// connection manages a WebSocket connection with a single write goroutine.
//
// Mission control and events travel on a queue and are never reordered.
// Vehicle states are telemetry: only the newest unsent one is kept, so a
// slow link sees fewer states rather than stale ones. Enqueue order across
// both lanes is preserved on the wire.
type connection struct {
	mu     sync.Mutex
	conn   *ws.Conn
	closed bool

	control chan outbound
	state   *outbound     // newest unsent vehicle state
	wake    chan struct{} // signalled when state is set
	ackCh   chan streaming.AckMessage
	done    chan struct{} // closed on shutdown
	seq     atomic.Uint64

	wsURL  string
	secret string

	// replayed after a reconnect
	cachedStartMsg []byte
	lastState      []byte

	// first reconnect delay, doubled per failed attempt
	backoff time.Duration

	sent, coalesced, dropped atomic.Uint64

	logger *slog.Logger
}

func newConnection(logger *slog.Logger) *connection {
	return &connection{
		control: make(chan outbound, controlChSize),
		wake:    make(chan struct{}, 1),
		ackCh:   make(chan streaming.AckMessage, ackChSize),
		done:    make(chan struct{}),
		backoff: time.Second,
		logger:  logger,
	}
}

// dial connects to the WebSocket server and starts read/write loops.
func (c *connection) dial(rawURL, secret string) error {
	c.wsURL = rawURL
	c.secret = secret

	conn, err := c.dialOnce()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.writeLoop()
	go c.readLoop()

	return nil
}

// dialOnce performs a single WebSocket dial with the secret query param.
func (c *connection) dialOnce() (*ws.Conn, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	q := u.Query()
	q.Set("secret", c.secret)
	u.RawQuery = q.Encode()

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// writeLoop owns all writes. It returns on shutdown or after handing a
// failed connection to reconnect.
func (c *connection) writeLoop() {
	write := func(data []byte) error {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return fmt.Errorf("not connected")
		}
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return err
		}
		return conn.WriteMessage(ws.TextMessage, data)
	}

	for {
		var err error
		select {
		case <-c.done:
			return
		case m := <-c.control:
			err = c.writeControl(m, write)
		case <-c.wake:
			err = c.drain(write)
		}
		if err != nil {
			c.logger.Warn("WebSocket write error", "error", err)
			go c.reconnect()
			return
		}
	}
}

// writeControl writes m, preceded by the pending state if that was queued
// first.
func (c *connection) writeControl(m outbound, write func([]byte) error) error {
	if st := c.takeState(m.seq); st != nil {
		if err := c.writeState(st, write); err != nil {
			return err
		}
	}
	if err := write(m.data); err != nil {
		return err
	}
	c.sent.Add(1)
	return nil
}

// drain writes every queued control message and then the pending state.
func (c *connection) drain(write func([]byte) error) error {
	for n := len(c.control); n > 0; n-- {
		if err := c.writeControl(<-c.control, write); err != nil {
			return err
		}
	}
	if st := c.takeState(0); st != nil {
		return c.writeState(st, write)
	}
	return nil
}

func (c *connection) writeState(st *outbound, write func([]byte) error) error {
	if err := write(st.data); err != nil {
		return err
	}
	c.sent.Add(1)
	c.mu.Lock()
	c.lastState = st.data
	c.mu.Unlock()
	return nil
}

// takeState removes and returns the pending state if it was enqueued before
// seq. A zero seq takes it unconditionally.
func (c *connection) takeState(before uint64) *outbound {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.state
	if st == nil || (before != 0 && st.seq > before) {
		return nil
	}
	c.state = nil
	return st
}

// readLoop reads ack messages from the server and routes them to ackCh.
func (c *connection) readLoop() {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.logger.Warn("WebSocket read error", "error", err)
			go c.reconnect()
			return
		}

		var ack streaming.AckMessage
		if err := json.Unmarshal(message, &ack); err != nil || ack.Type != streaming.TypeAck {
			c.logger.Debug("Non-ack message received", "raw", string(message))
			continue
		}

		select {
		case c.ackCh <- ack:
		default:
			c.logger.Debug("Ack channel full, dropping", "for", ack.For)
		}
	}
}

// reconnect re-establishes the connection with exponential backoff. On
// success it replays start_mission and the last vehicle state sent, so the
// server is back in sync before new telemetry arrives.
func (c *connection) reconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	backoff := c.backoff
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		c.logger.Info("Reconnecting to WebSocket", "attempt", attempt, "backoff", backoff)
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}

		conn, err := c.dialOnce()
		if err != nil {
			c.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		c.mu.Lock()
		replay := [][]byte{c.cachedStartMsg, c.lastState}
		c.mu.Unlock()

		if err := replayOn(conn, replay); err != nil {
			c.logger.Warn("Replay after reconnect failed", "error", err)
			_ = conn.Close()
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()

		c.logger.Info("WebSocket reconnected", "attempt", attempt)
		go c.writeLoop()
		go c.readLoop()
		return
	}

	c.logger.Error("WebSocket reconnect failed after max attempts", "maxAttempts", maxReconnect)
}

func replayOn(conn *ws.Conn, msgs [][]byte) error {
	for _, data := range msgs {
		if data == nil {
			continue
		}
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return err
		}
		if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
			return err
		}
	}
	return nil
}

// send queues a control or event message. Non-blocking; drops if the queue
// is full.
func (c *connection) send(data []byte) {
	select {
	case c.control <- outbound{seq: c.seq.Add(1), data: data}:
	default:
		c.dropped.Add(1)
		c.logger.Warn("WebSocket send queue full, dropping message")
	}
}

// sendState replaces the pending vehicle state.
func (c *connection) sendState(data []byte) {
	m := &outbound{seq: c.seq.Add(1), data: data}
	c.mu.Lock()
	if c.state != nil {
		c.coalesced.Add(1)
	}
	c.state = m
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// sendAndWait sends data and blocks until the server acknowledges with a
// matching ack message or the timeout expires. An ack without an ID matches
// on type alone.
func (c *connection) sendAndWait(data []byte, ackFor, id string, timeout time.Duration) error {
	c.send(data)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ack := <-c.ackCh:
			if ack.For == ackFor && (ack.ID == "" || ack.ID == id) {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", ackFor)
		case <-c.done:
			return fmt.Errorf("connection closed while waiting for ack of %q", ackFor)
		}
	}
}

func (c *connection) stats() Stats {
	return Stats{
		Sent:      c.sent.Load(),
		Coalesced: c.coalesced.Load(),
		Dropped:   c.dropped.Load(),
	}
}

// close sends a WebSocket close frame and shuts down all goroutines.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteMessage(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		)
		return conn.Close()
	}
	return nil
}
