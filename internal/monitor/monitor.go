// Package monitor periodically writes the program status to a text file.
package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/OCAP2/dronesim/internal/mission"
	"github.com/OCAP2/dronesim/internal/sim"
	"github.com/OCAP2/dronesim/internal/worker"
)

// SnapshotSource provides the current simulation state.
type SnapshotSource interface {
	Snapshot() sim.Snapshot
}

// WorkerStats is the part of worker.Manager the monitor reads.
type WorkerStats interface {
	Stats() worker.Stats
	GetLastDBWriteDuration() time.Duration
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Sim            SnapshotSource
	MissionContext *mission.Context
	WorkerManager  WorkerStats // optional
	Logger         *slog.Logger
	File           string
	Interval       time.Duration
}

// ProgramStatus is one status report.
type ProgramStatus struct {
	Time                time.Time    `json:"time"`
	Mission             string       `json:"mission"`
	MissionUUID         string       `json:"missionUuid"`
	Snapshot            sim.Snapshot `json:"snapshot"`
	Recorded            uint64       `json:"recorded"`
	Dropped             uint64       `json:"dropped"`
	Pending             int          `json:"pending"`
	LastWriteDurationMs float32      `json:"lastWriteDurationMs"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = 5 * time.Second
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetProgramStatus returns the current status and its text rendering.
func (s *Service) GetProgramStatus() (output []string, status ProgramStatus) {
	snap := s.deps.Sim.Snapshot()
	status = ProgramStatus{Time: time.Now(), Snapshot: snap}
	if s.deps.MissionContext != nil {
		m := s.deps.MissionContext.GetMission()
		status.Mission = m.MissionName
		status.MissionUUID = m.UUID
	}
	if s.deps.WorkerManager != nil {
		st := s.deps.WorkerManager.Stats()
		status.Recorded = st.Recorded
		status.Dropped = st.Dropped
		status.Pending = st.Pending
		status.LastWriteDurationMs = float32(s.deps.WorkerManager.GetLastDBWriteDuration().Microseconds()) / 1000
	}

	output = append(output, fmt.Sprintf("Mission: %s (%s)", status.Mission, status.MissionUUID))
	output = append(output, snap.HUD())
	output = append(output, "Status: "+snap.Status)

	raw, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		raw = []byte(fmt.Sprintf(`{"error": "%s"}`, err))
	}
	output = append(output, string(raw))
	return output, status
}

// WriteStatus replaces the status file contents.
func (s *Service) WriteStatus() error {
	lines, _ := s.GetProgramStatus()
	f, err := os.Create(s.deps.File)
	if err != nil {
		return fmt.Errorf("error creating status file: %w", err)
	}
	defer f.Close()
	for _, line := range lines {
		if _, err := f.WriteString(line + "\n"); err != nil {
			return fmt.Errorf("error writing status file: %w", err)
		}
	}
	return nil
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.Logger
		logger.Debug("Starting status monitor goroutine", "file", s.deps.File)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := s.WriteStatus(); err != nil {
					logger.Error("Error writing status file", "error", err)
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
