package streaming

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/OCAP2/dronesim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelope(t *testing.T) {
	state := core.VehicleState{
		Time:     time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Tick:     42,
		Position: core.Position2D{X: 180, Y: 300},
		Battery:  97.5,
		Flying:   true,
	}

	env, err := NewEnvelope("abc", TypeVehicleState, state)
	require.NoError(t, err)
	assert.Equal(t, "abc", env.ID)
	assert.Equal(t, TypeVehicleState, env.Type)

	raw, err := json.Marshal(env)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"type":"vehicle_state"`)
	assert.Contains(t, string(raw), `"tick":42`)

	var back core.VehicleState
	require.NoError(t, json.Unmarshal(env.Payload, &back))
	assert.Equal(t, state, back)
}

func TestNewEnvelope_Unmarshalable(t *testing.T) {
	_, err := NewEnvelope("", TypeStatusEvent, make(chan int))
	assert.Error(t, err)
}
