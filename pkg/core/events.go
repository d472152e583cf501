// pkg/core/events.go
package core

import "time"

// StatusEvent is a human-readable status report.
type StatusEvent struct {
	Time   time.Time `json:"time"`
	Tick   uint64    `json:"tick"`
	Kind   string    `json:"kind"`
	Detail string    `json:"detail"`
}

// CommandEvent marks a script command starting or completing.
type CommandEvent struct {
	Time    time.Time `json:"time"`
	Tick    uint64    `json:"tick"`
	Kind    string    `json:"kind"`
	Command string    `json:"command"`
	Phase   string    `json:"phase"`
	Outcome string    `json:"outcome,omitempty"`
}
