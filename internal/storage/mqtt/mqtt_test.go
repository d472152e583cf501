package mqtt

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/dronesim/pkg/core"
	"github.com/OCAP2/dronesim/pkg/streaming"
)

// fakeToken completes immediately unless pending is set.
type fakeToken struct {
	err     error
	pending bool
}

func (t *fakeToken) Wait() bool { return !t.pending }

func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.pending }

func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	if !t.pending {
		close(ch)
	}
	return ch
}

func (t *fakeToken) Error() error { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	env      streaming.Envelope
}

type fakeClient struct {
	mu           sync.Mutex
	connectErr   error
	publishToken *fakeToken
	messages     []published
	disconnected bool
}

func (c *fakeClient) Connect() paho.Token {
	return &fakeToken{err: c.connectErr}
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	var env streaming.Envelope
	_ = json.Unmarshal(payload.([]byte), &env)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, published{topic: topic, qos: qos, retained: retained, env: env})
	if c.publishToken != nil {
		return c.publishToken
	}
	return &fakeToken{}
}

func (c *fakeClient) all() []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]published(nil), c.messages...)
}

func newBackend(t *testing.T, client *fakeClient) *Backend {
	t.Helper()
	b := NewWithClient(Config{Broker: "tcp://broker:1883", TopicPrefix: "fleet", Timeout: 10 * time.Millisecond}, client, nil)
	require.NoError(t, b.Init())
	return b
}

func TestMissionLifecycle(t *testing.T) {
	client := &fakeClient{}
	b := newBackend(t, client)

	require.NoError(t, b.StartMission(&core.Mission{UUID: "m-1", MissionName: "Patrol"}))
	assert.Equal(t, "fleet/m-1/state", b.Topic(TopicState))

	require.NoError(t, b.RecordVehicleState(&core.VehicleState{Tick: 1}))
	require.NoError(t, b.RecordStatusEvent(&core.StatusEvent{Tick: 1, Kind: "takeoff"}))
	require.NoError(t, b.RecordCommandEvent(&core.CommandEvent{Tick: 1, Kind: "TAKEOFF"}))
	require.NoError(t, b.EndMission())
	require.NoError(t, b.Close())

	msgs := client.all()
	require.Len(t, msgs, 5)

	assert.Equal(t, "fleet/m-1/mission", msgs[0].topic)
	assert.Equal(t, streaming.TypeStartMission, msgs[0].env.Type)
	assert.True(t, msgs[0].retained)
	assert.Equal(t, byte(1), msgs[0].qos)
	assert.NotEmpty(t, msgs[0].env.ID)

	assert.Equal(t, "fleet/m-1/state", msgs[1].topic)
	assert.Equal(t, streaming.TypeVehicleState, msgs[1].env.Type)
	assert.False(t, msgs[1].retained)
	assert.Equal(t, byte(0), msgs[1].qos)

	assert.Equal(t, "fleet/m-1/status", msgs[2].topic)
	assert.Equal(t, "fleet/m-1/command", msgs[3].topic)
	assert.Equal(t, streaming.TypeEndMission, msgs[4].env.Type)
	assert.Equal(t, "fleet/m-1/mission", msgs[4].topic)

	client.mu.Lock()
	assert.True(t, client.disconnected)
	client.mu.Unlock()
}

func TestRecordWithoutMission(t *testing.T) {
	client := &fakeClient{}
	b := newBackend(t, client)

	assert.ErrorIs(t, b.RecordVehicleState(&core.VehicleState{}), ErrNoMission)
	assert.NoError(t, b.EndMission())
	assert.Empty(t, client.all())
}

func TestInit_ConnectError(t *testing.T) {
	client := &fakeClient{connectErr: errors.New("refused")}
	b := NewWithClient(Config{Broker: "tcp://broker:1883"}, client, nil)

	err := b.Init()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")
}

func TestStartMission_Timeout(t *testing.T) {
	client := &fakeClient{publishToken: &fakeToken{pending: true}}
	b := newBackend(t, client)

	err := b.StartMission(&core.Mission{UUID: "m-2"})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestDefaults(t *testing.T) {
	b := NewWithClient(Config{}, &fakeClient{}, nil)
	assert.Equal(t, DefaultTimeout, b.cfg.Timeout)
	assert.Equal(t, "dronesim//state", b.Topic(TopicState))
}
