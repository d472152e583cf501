// Package status defines the human-readable events the simulator reports
// instead of mutating a UI directly.
package status

import "fmt"

// Kind classifies a status event.
type Kind int

const (
	None Kind = iota
	Ready
	Ignored
	BoundaryStop
	ObstacleStop
	Takeoff
	Landing
	AlreadyFlying
	AlreadyGrounded
	BatteryTooLow
	BatteryCritical
	SpeedSet
	ScriptQueued
	ScriptError
	NoScript
	MissionComplete
	Stopped
	Reset
	Running
	Paused
	HomeQueued
)

var kindNames = map[Kind]string{
	None:            "none",
	Ready:           "ready",
	Ignored:         "ignored",
	BoundaryStop:    "boundary_stop",
	ObstacleStop:    "obstacle_stop",
	Takeoff:         "takeoff",
	Landing:         "landing",
	AlreadyFlying:   "already_flying",
	AlreadyGrounded: "already_grounded",
	BatteryTooLow:   "battery_too_low",
	BatteryCritical: "battery_critical",
	SpeedSet:        "speed_set",
	ScriptQueued:    "script_queued",
	ScriptError:     "script_error",
	NoScript:        "no_script",
	MissionComplete: "mission_complete",
	Stopped:         "stopped",
	Reset:           "reset",
	Running:         "running",
	Paused:          "paused",
	HomeQueued:      "home_queued",
}

// String returns the snake_case name used in logs and storage.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name. Unknown names decode to None.
func (k *Kind) UnmarshalText(text []byte) error {
	*k = ParseKind(string(text))
	return nil
}

// ParseKind looks a kind up by its snake_case name.
func ParseKind(name string) Kind {
	for k, n := range kindNames {
		if n == name {
			return k
		}
	}
	return None
}

// SafetyStop reports whether the kind ends a motion command early.
func (k Kind) SafetyStop() bool {
	return k == BoundaryStop || k == ObstacleStop || k == BatteryCritical
}

// Event is a single status report. The zero value means "nothing to report".
type Event struct {
	Kind   Kind   `json:"kind"`
	Detail string `json:"detail"`
}

// New builds an event with a formatted detail message.
func New(kind Kind, format string, args ...any) Event {
	if len(args) == 0 {
		return Event{Kind: kind, Detail: format}
	}
	return Event{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Empty reports whether the event carries nothing.
func (e Event) Empty() bool {
	return e.Kind == None
}

func (e Event) String() string {
	return e.Detail
}
