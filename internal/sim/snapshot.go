package sim

import (
	"fmt"
	"strings"
	"time"

	"github.com/OCAP2/dronesim/internal/command"
	"github.com/OCAP2/dronesim/internal/status"
)

// RunState is the loop's execution state.
type RunState int

const (
	Paused RunState = iota
	Running
)

func (r RunState) String() string {
	if r == Running {
		return "RUNNING"
	}
	return "PAUSED"
}

// Snapshot is a point-in-time copy of everything a display or recorder needs.
type Snapshot struct {
	Tick      uint64    `json:"tick"`
	Time      time.Time `json:"time"`
	State     string    `json:"state"`
	Flying    bool      `json:"flying"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Heading   float64   `json:"heading"`
	Speed     float64   `json:"speed"`
	TurnSpeed float64   `json:"turnSpeed"`
	Altitude  float64   `json:"altitude"`
	Battery   float64   `json:"battery"`
	QueueLen  int       `json:"queueLen"`
	Current   string    `json:"current,omitempty"`
	PathLen   int       `json:"pathLen"`
	Status    string    `json:"status"`
}

// HUD renders the heads-up text block.
func (s Snapshot) HUD() string {
	flight := "GROUND"
	if s.Flying {
		flight = "FLYING"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "State: %s\n", flight)
	fmt.Fprintf(&sb, "Pos: (%.1f, %.1f)\n", s.X, s.Y)
	fmt.Fprintf(&sb, "Heading: %.1f°\n", s.Heading)
	fmt.Fprintf(&sb, "Speed: %.0fpx/s\n", s.Speed)
	fmt.Fprintf(&sb, "Battery: %.1f%%\n", s.Battery)
	fmt.Fprintf(&sb, "Queue: %d commands", s.QueueLen)
	return sb.String()
}

// StatusEvent is a status report stamped with the tick that produced it.
type StatusEvent struct {
	Tick uint64    `json:"tick"`
	Time time.Time `json:"time"`
	status.Event
}

// Phase marks where a command is in its lifecycle.
type Phase string

const (
	PhaseStarted   Phase = "started"
	PhaseCompleted Phase = "completed"
)

// CommandEvent reports a queued command starting or completing.
type CommandEvent struct {
	Tick    uint64       `json:"tick"`
	Time    time.Time    `json:"time"`
	Kind    command.Kind `json:"kind"`
	Command string       `json:"command"`
	Phase   Phase        `json:"phase"`
	// Outcome is the status kind the command finished with, if any.
	Outcome status.Kind `json:"outcome,omitempty"`
}
