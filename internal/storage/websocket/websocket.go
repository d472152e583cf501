package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/OCAP2/dronesim/pkg/core"
	"github.com/OCAP2/dronesim/pkg/streaming"
)

// DefaultAckTimeout bounds how long mission start/end wait for the server.
const DefaultAckTimeout = 10 * time.Second

// Config holds WebSocket backend configuration.
type Config struct {
	URL        string
	Secret     string
	AckTimeout time.Duration
}

// Backend streams flight data over WebSocket to a remote recorder.
// It implements storage.Backend but not storage.Uploadable.
type Backend struct {
	conn *connection
	cfg  Config
}

// New creates a new WebSocket storage backend.
func New(cfg Config, logger *slog.Logger) *Backend {
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = DefaultAckTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		conn: newConnection(logger),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// marshalEnvelope builds a JSON-encoded Envelope with a fresh message ID.
func marshalEnvelope(msgType string, payload any) (string, []byte, error) {
	id := uuid.NewString()
	env, err := streaming.NewEnvelope(id, msgType, payload)
	if err != nil {
		return "", nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(env)
	if err != nil {
		return "", nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return id, data, nil
}

// sendEnvelope marshals the payload into an Envelope and pushes it
// to the write loop (fire-and-forget).
func (b *Backend) sendEnvelope(msgType string, payload any) error {
	_, data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}

// StartMission sends the mission and waits for server ack.
func (b *Backend) StartMission(mission *core.Mission) error {
	id, data, err := marshalEnvelope(streaming.TypeStartMission, streaming.StartMissionPayload{Mission: mission})
	if err != nil {
		return err
	}

	// Cache for reconnect replay.
	b.conn.mu.Lock()
	b.conn.cachedStartMsg = data
	b.conn.mu.Unlock()

	return b.conn.sendAndWait(data, streaming.TypeStartMission, id, b.cfg.AckTimeout)
}

// Stats reports what happened to outgoing messages so far.
func (b *Backend) Stats() Stats {
	return b.conn.stats()
}

// EndMission sends end_mission and waits for server ack.
func (b *Backend) EndMission() error {
	id, data, err := marshalEnvelope(streaming.TypeEndMission, nil)
	if err != nil {
		return err
	}
	err = b.conn.sendAndWait(data, streaming.TypeEndMission, id, b.cfg.AckTimeout)

	// Clear cached state regardless of error.
	b.conn.mu.Lock()
	b.conn.cachedStartMsg = nil
	b.conn.lastState = nil
	b.conn.mu.Unlock()

	return err
}

// RecordVehicleState hands the state to the telemetry lane, where a newer
// state replaces one not yet written.
func (b *Backend) RecordVehicleState(s *core.VehicleState) error {
	_, data, err := marshalEnvelope(streaming.TypeVehicleState, s)
	if err != nil {
		return err
	}
	b.conn.sendState(data)
	return nil
}

func (b *Backend) RecordStatusEvent(e *core.StatusEvent) error {
	return b.sendEnvelope(streaming.TypeStatusEvent, e)
}

func (b *Backend) RecordCommandEvent(e *core.CommandEvent) error {
	return b.sendEnvelope(streaming.TypeCommandEvent, e)
}
