// Package storage defines what a mission recorder has to do. The worker
// drives a Backend from a single goroutine, so implementations need no
// locking of their own beyond what their exports require.
package storage

import (
	"time"

	"github.com/OCAP2/dronesim/pkg/core"
)

// Backend records one mission at a time.
type Backend interface {
	Init() error
	Close() error

	// StartMission opens a recording. Records arriving before it are
	// dropped by the backend.
	StartMission(m *core.Mission) error
	// EndMission closes the current recording and, for file backends,
	// writes the export.
	EndMission() error

	RecordVehicleState(s *core.VehicleState) error
	RecordStatusEvent(e *core.StatusEvent) error
	RecordCommandEvent(e *core.CommandEvent) error
}

// Flusher is implemented by backends that batch records before writing.
// Flush returns once everything recorded so far is persisted.
type Flusher interface {
	Flush() error
}

// WriteTimer reports how long the last batch write took.
type WriteTimer interface {
	GetLastDBWriteDuration() time.Duration
}

// Uploadable is implemented by backends whose EndMission leaves a file
// the mission archive accepts.
type Uploadable interface {
	GetExportedFilePath() string
	GetExportMetadata() core.UploadMetadata
}
