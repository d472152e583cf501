// Package mqtt implements the storage.Backend interface by publishing flight
// data to an MQTT broker. Every message is a streaming.Envelope on a topic
// under <prefix>/<mission uuid>/.
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/OCAP2/dronesim/pkg/core"
	"github.com/OCAP2/dronesim/pkg/streaming"
)

// DefaultTimeout bounds connect and mission start/end publishes.
const DefaultTimeout = 5 * time.Second

// Topic suffixes under <prefix>/<mission uuid>/.
const (
	TopicMission = "mission"
	TopicState   = "state"
	TopicStatus  = "status"
	TopicCommand = "command"
)

var (
	// ErrTimeout is returned when the broker does not confirm in time.
	ErrTimeout = errors.New("mqtt: timed out waiting for broker")
	// ErrNoMission is returned when recording before StartMission.
	ErrNoMission = errors.New("mqtt: no mission started")
)

// Client is the part of paho's mqtt.Client the backend uses.
type Client interface {
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// Config holds MQTT backend configuration.
type Config struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	QoS         byte
	Timeout     time.Duration
}

// Backend publishes mission data to an MQTT broker.
type Backend struct {
	cfg    Config
	client Client
	log    *slog.Logger

	mu      sync.RWMutex
	mission string
}

// New creates a backend on a paho client built from cfg.
func New(cfg Config, logger *slog.Logger) *Backend {
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(false).
		SetProtocolVersion(4) // MQTT 3.1.1
	return NewWithClient(cfg, paho.NewClient(opts), logger)
}

// NewWithClient creates a backend on an existing client.
func NewWithClient(cfg Config, client Client, logger *slog.Logger) *Backend {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "dronesim"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{cfg: cfg, client: client, log: logger}
}

// Init connects to the broker.
func (b *Backend) Init() error {
	if err := b.wait(b.client.Connect()); err != nil {
		return fmt.Errorf("mqtt connect to %s: %w", b.cfg.Broker, err)
	}
	b.log.Info("Connected to MQTT broker", "broker", b.cfg.Broker)
	return nil
}

// Close disconnects, giving in-flight messages a moment to drain.
func (b *Backend) Close() error {
	b.client.Disconnect(250)
	return nil
}

// Topic returns the full topic for a suffix in the current mission.
func (b *Backend) Topic(suffix string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return fmt.Sprintf("%s/%s/%s", b.cfg.TopicPrefix, b.mission, suffix)
}

// StartMission publishes the mission, retained, and waits for the broker.
func (b *Backend) StartMission(mission *core.Mission) error {
	b.mu.Lock()
	b.mission = mission.UUID
	b.mu.Unlock()

	return b.publishAndWait(TopicMission, streaming.TypeStartMission, streaming.StartMissionPayload{Mission: mission})
}

// EndMission publishes end_mission and stops tagging messages with the mission.
func (b *Backend) EndMission() error {
	b.mu.RLock()
	active := b.mission != ""
	b.mu.RUnlock()
	if !active {
		return nil
	}

	err := b.publishAndWait(TopicMission, streaming.TypeEndMission, nil)

	b.mu.Lock()
	b.mission = ""
	b.mu.Unlock()
	return err
}

func (b *Backend) RecordVehicleState(s *core.VehicleState) error {
	return b.publish(TopicState, streaming.TypeVehicleState, s)
}

func (b *Backend) RecordStatusEvent(e *core.StatusEvent) error {
	return b.publish(TopicStatus, streaming.TypeStatusEvent, e)
}

func (b *Backend) RecordCommandEvent(e *core.CommandEvent) error {
	return b.publish(TopicCommand, streaming.TypeCommandEvent, e)
}

func encode(msgType string, payload any) ([]byte, error) {
	env, err := streaming.NewEnvelope(uuid.NewString(), msgType, payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	return json.Marshal(env)
}

// publish sends without waiting; delivery errors are logged by the token.
func (b *Backend) publish(suffix, msgType string, payload any) error {
	b.mu.RLock()
	active := b.mission != ""
	b.mu.RUnlock()
	if !active {
		return ErrNoMission
	}

	data, err := encode(msgType, payload)
	if err != nil {
		return err
	}
	token := b.client.Publish(b.Topic(suffix), b.cfg.QoS, false, data)
	go func() {
		if token.WaitTimeout(b.cfg.Timeout) && token.Error() != nil {
			b.log.Warn("MQTT publish failed", "type", msgType, "error", token.Error())
		}
	}()
	return nil
}

// publishAndWait sends a retained message and waits for the broker.
func (b *Backend) publishAndWait(suffix, msgType string, payload any) error {
	data, err := encode(msgType, payload)
	if err != nil {
		return err
	}
	qos := b.cfg.QoS
	if qos == 0 {
		qos = 1
	}
	if err := b.wait(b.client.Publish(b.Topic(suffix), qos, true, data)); err != nil {
		return fmt.Errorf("publish %s: %w", msgType, err)
	}
	return nil
}

func (b *Backend) wait(token paho.Token) error {
	if !token.WaitTimeout(b.cfg.Timeout) {
		return ErrTimeout
	}
	return token.Error()
}
