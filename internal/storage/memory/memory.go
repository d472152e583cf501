// internal/storage/memory/memory.go
package memory

import (
	"sync"

	"github.com/OCAP2/dronesim/internal/config"
	"github.com/OCAP2/dronesim/internal/geo"
	"github.com/OCAP2/dronesim/pkg/core"
)

// Backend keeps a mission in memory and exports it to JSON when it ends
type Backend struct {
	cfg  config.MemoryConfig
	proj *geo.Projector

	mission       *core.Mission
	states        []core.VehicleState
	statusEvents  []core.StatusEvent
	commandEvents []core.CommandEvent

	lastExportPath     string
	lastExportMetadata core.UploadMetadata

	mu sync.RWMutex
}

// New creates a new memory backend. proj may be nil, in which case exports
// carry no geographic track.
func New(cfg config.MemoryConfig, proj *geo.Projector) *Backend {
	return &Backend{
		cfg:  cfg,
		proj: proj,
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartMission begins recording a new mission
func (b *Backend) StartMission(mission *core.Mission) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.mission = mission
	b.states = nil
	b.statusEvents = nil
	b.commandEvents = nil

	return nil
}

// EndMission finalizes and exports the mission data. Ending without a
// mission is a no-op.
func (b *Backend) EndMission() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.mission == nil {
		return nil
	}
	if err := b.exportJSON(); err != nil {
		return err
	}
	b.mission = nil
	return nil
}

// RecordVehicleState records one tick of vehicle state
func (b *Backend) RecordVehicleState(s *core.VehicleState) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.states = append(b.states, *s)
	return nil
}

// RecordStatusEvent records a status event
func (b *Backend) RecordStatusEvent(e *core.StatusEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statusEvents = append(b.statusEvents, *e)
	return nil
}

// RecordCommandEvent records a command lifecycle event
func (b *Backend) RecordCommandEvent(e *core.CommandEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commandEvents = append(b.commandEvents, *e)
	return nil
}

// GetExportedFilePath returns the path of the last export
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// GetExportMetadata describes the last export for upload
func (b *Backend) GetExportMetadata() core.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportMetadata
}

// Mission returns the mission being recorded
func (b *Backend) Mission() *core.Mission {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.mission
}

// VehicleStates returns a copy of the recorded states
func (b *Backend) VehicleStates() []core.VehicleState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]core.VehicleState(nil), b.states...)
}

// StatusEvents returns a copy of the recorded status events
func (b *Backend) StatusEvents() []core.StatusEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]core.StatusEvent(nil), b.statusEvents...)
}

// CommandEvents returns a copy of the recorded command events
func (b *Backend) CommandEvents() []core.CommandEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]core.CommandEvent(nil), b.commandEvents...)
}
