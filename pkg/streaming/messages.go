package streaming

import (
	"encoding/json"

	"github.com/OCAP2/dronesim/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartMission = "start_mission"
	TypeEndMission   = "end_mission"
	TypeVehicleState = "vehicle_state"
	TypeStatusEvent  = "status_event"
	TypeCommandEvent = "command_event"
	TypeSnapshot     = "snapshot"
	TypeControl      = "control"
	TypeResult       = "result"
	TypeAck          = "ack"
)

// Envelope wraps all messages sent over the WebSocket or MQTT.
type Envelope struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
	ID   string `json:"id,omitempty"`
}

// ControlMessage is sent by live-feed clients to drive the simulation.
type ControlMessage struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// ResultMessage answers a ControlMessage.
type ResultMessage struct {
	Command string `json:"command"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// StartMissionPayload carries mission data.
type StartMissionPayload struct {
	Mission *core.Mission `json:"mission"`
}

// NewEnvelope marshals payload under the given message type.
func NewEnvelope(id, msgType string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{ID: id, Type: msgType, Payload: data}, nil
}
