// Package command implements the resumable steppers that execute one script
// instruction each. A stepper is advanced at most once per simulation tick and
// either performs a bounded increment of work or reports completion.
package command

import (
	"strconv"
	"strings"

	"github.com/OCAP2/dronesim/internal/status"
	"github.com/OCAP2/dronesim/internal/vehicle"
)

// Kind identifies a script instruction.
type Kind string

const (
	KindTakeoff  Kind = "TAKEOFF"
	KindLand     Kind = "LAND"
	KindHome     Kind = "HOME"
	KindWait     Kind = "WAIT"
	KindTurn     Kind = "TURN"
	KindMove     Kind = "MOVE"
	KindGoto     Kind = "GOTO"
	KindSetSpeed Kind = "SETSPEED"
)

// Kinds lists every instruction the parser accepts.
var Kinds = []Kind{KindTakeoff, KindLand, KindHome, KindWait, KindTurn, KindMove, KindGoto, KindSetSpeed}

// Result tells the loop whether a stepper wants another resumption.
type Result int

const (
	Continue Result = iota
	Done
)

func (r Result) String() string {
	if r == Done {
		return "done"
	}
	return "continue"
}

// Tolerances at which motion is considered complete.
const (
	TurnTolerance = 0.5  // degrees
	MoveTolerance = 0.8  // pixels
	AimTolerance  = 3.0  // degrees of heading error before GOTO moves forward
	ArrivalRadius = 10.0 // pixels from the GOTO target
)

// Stepper is one in-progress script command.
type Stepper interface {
	Kind() Kind
	// Advance performs at most one bounded increment using the elapsed tick
	// time dt in seconds. The returned event is empty when there is nothing
	// to report.
	Advance(v *vehicle.Vehicle, arena *vehicle.Arena, dt float64) (Result, status.Event)
	// String renders the command in script syntax.
	String() string
}

func format(kind Kind, args ...float64) string {
	var sb strings.Builder
	sb.WriteString(string(kind))
	for _, a := range args {
		sb.WriteByte(' ')
		sb.WriteString(strconv.FormatFloat(a, 'f', -1, 64))
	}
	return sb.String()
}

func ignored(kind Kind) status.Event {
	return status.New(status.Ignored, "%s ignored (not flying).", kind)
}
