// Package gormstorage implements the storage.Backend interface on top of any
// gorm dialect. Records are converted to GORM models, pushed to internal
// queues and written in batches by a background writer goroutine.
package gormstorage

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OCAP2/dronesim/internal/geo"
	"github.com/OCAP2/dronesim/internal/model"
	"github.com/OCAP2/dronesim/internal/model/convert"
	"github.com/OCAP2/dronesim/internal/queue"
	"github.com/OCAP2/dronesim/pkg/core"

	"gorm.io/gorm"
)

// DefaultFlushInterval is how often the writer drains the queues.
const DefaultFlushInterval = time.Second

var (
	// ErrNoDB is returned by Init when no connection was injected.
	ErrNoDB = errors.New("no database connection")
	// ErrNoMission is returned when recording before StartMission.
	ErrNoMission = errors.New("no mission started")
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	Projector     *geo.Projector // optional; positions stay in pixels without it
	Logger        *slog.Logger
	FlushInterval time.Duration
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	VehicleStates *queue.Queue[model.VehicleState]
	StatusEvents  *queue.Queue[model.StatusEvent]
	CommandEvents *queue.Queue[model.CommandEvent]
}

func newQueues() *queues {
	return &queues{
		VehicleStates: queue.New[model.VehicleState](),
		StatusEvents:  queue.New[model.StatusEvent](),
		CommandEvents: queue.New[model.CommandEvent](),
	}
}

// Backend implements storage.Backend with queue-based batch writes.
type Backend struct {
	deps      Dependencies
	log       *slog.Logger
	queues    *queues
	missionID atomic.Uint64

	// flight path of the current mission, for the track written on end
	pathMu    sync.Mutex
	path      []core.Position2D
	completed uint

	lastWrite atomic.Int64
	flushMu   sync.Mutex
	stopChan  chan struct{}
	done      chan struct{}
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = DefaultFlushInterval
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Backend{
		deps:   deps,
		log:    log,
		queues: newQueues(),
	}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// MissionID returns the database ID of the current mission, or 0.
func (b *Backend) MissionID() uint {
	return uint(b.missionID.Load())
}

// Init migrates the schema and starts the DB writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return ErrNoDB
	}
	if err := b.deps.DB.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	go b.writerLoop()
	return nil
}

// Close stops the DB writer goroutine and writes whatever is still queued.
func (b *Backend) Close() error {
	if b.stopChan != nil {
		close(b.stopChan)
		<-b.done
		b.stopChan = nil
	}
	if b.deps.DB == nil {
		return nil
	}
	return b.Flush()
}

// StartMission inserts the mission row and assigns its ID back to mission.
func (b *Backend) StartMission(mission *core.Mission) error {
	if b.deps.DB == nil {
		return ErrNoDB
	}

	gormMission := convert.CoreToMission(*mission, b.deps.Projector)
	gormMission.ID = 0
	if err := b.deps.DB.Create(&gormMission).Error; err != nil {
		return fmt.Errorf("failed to insert new mission: %w", err)
	}
	mission.ID = gormMission.ID

	b.pathMu.Lock()
	b.path = nil
	b.completed = 0
	b.pathMu.Unlock()

	b.missionID.Store(uint64(gormMission.ID))
	b.log.Info("Mission started", "missionId", gormMission.ID, "uuid", mission.UUID)
	return nil
}

// EndMission flushes the queues and stamps the mission with its end time,
// flight track and distance.
func (b *Backend) EndMission() error {
	id := b.MissionID()
	if id == 0 {
		return nil
	}
	if err := b.Flush(); err != nil {
		return err
	}

	b.pathMu.Lock()
	path := b.path
	completed := b.completed
	b.pathMu.Unlock()

	updates := map[string]any{
		"end_time":      sql.NullTime{Time: time.Now(), Valid: true},
		"command_count": completed,
	}
	if proj := b.deps.Projector; proj != nil {
		updates["distance_meters"] = proj.TrackLength(path)
		if ls, err := proj.Track(path); err == nil {
			updates["track"] = ls.AsGeometry()
		}
	}

	if err := b.deps.DB.Model(&model.Mission{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to finalize mission: %w", err)
	}
	b.missionID.Store(0)
	b.log.Info("Mission ended", "missionId", id, "points", len(path))
	return nil
}

// RecordVehicleState converts and queues a vehicle state.
func (b *Backend) RecordVehicleState(s *core.VehicleState) error {
	id := b.MissionID()
	if id == 0 {
		return ErrNoMission
	}
	b.queues.VehicleStates.Push(convert.CoreToVehicleState(*s, id, b.deps.Projector))

	b.pathMu.Lock()
	if n := len(b.path); n == 0 || b.path[n-1] != s.Position {
		b.path = append(b.path, s.Position)
	}
	b.pathMu.Unlock()
	return nil
}

// RecordStatusEvent converts and queues a status event.
func (b *Backend) RecordStatusEvent(e *core.StatusEvent) error {
	id := b.MissionID()
	if id == 0 {
		return ErrNoMission
	}
	b.queues.StatusEvents.Push(convert.CoreToStatusEvent(*e, id))
	return nil
}

// RecordCommandEvent converts and queues a command event.
func (b *Backend) RecordCommandEvent(e *core.CommandEvent) error {
	id := b.MissionID()
	if id == 0 {
		return ErrNoMission
	}
	b.queues.CommandEvents.Push(convert.CoreToCommandEvent(*e, id))

	if e.Phase == "completed" {
		b.pathMu.Lock()
		b.completed++
		b.pathMu.Unlock()
	}
	return nil
}

// QueueLengths reports how many records are waiting for the writer.
func (b *Backend) QueueLengths() (states, statusEvents, commandEvents int) {
	return b.queues.VehicleStates.Len(), b.queues.StatusEvents.Len(), b.queues.CommandEvents.Len()
}

// GetLastDBWriteDuration returns how long the last non-empty flush took.
func (b *Backend) GetLastDBWriteDuration() time.Duration {
	return time.Duration(b.lastWrite.Load())
}

// Flush writes every queued record now.
func (b *Backend) Flush() error {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	start := time.Now()
	db := b.deps.DB
	states, err1 := writeQueue(db, b.queues.VehicleStates, "vehicle states", b.log)
	statuses, err2 := writeQueue(db, b.queues.StatusEvents, "status events", b.log)
	commands, err3 := writeQueue(db, b.queues.CommandEvents, "command events", b.log)
	if err := errors.Join(err1, err2, err3); err != nil {
		return err
	}

	written := states + statuses + commands
	if written == 0 {
		return nil
	}
	b.lastWrite.Store(int64(time.Since(start)))
	perf := model.RecorderPerformance{
		Time:                time.Now(),
		MissionID:           b.MissionID(),
		VehicleStates:       uint32(states),
		StatusEvents:        uint32(statuses),
		CommandEvents:       uint32(commands),
		LastWriteDurationMs: float32(time.Since(start).Microseconds()) / 1000,
	}
	if perf.MissionID != 0 {
		if err := db.Create(&perf).Error; err != nil {
			b.log.Warn("Failed to record writer performance", "error", err)
		}
	}
	b.log.Debug("Flushed queues", "records", written, "duration", time.Since(start))
	return nil
}

// writeQueue writes all items from a queue to the database in a transaction.
// Failed batches are pushed back for the next cycle.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log *slog.Logger) (int, error) {
	if q.Empty() {
		return 0, nil
	}

	items := q.Drain()
	tx := db.Begin()
	if err := tx.Create(&items).Error; err != nil {
		log.Error("Error creating records", "table", name, "error", err)
		tx.Rollback()
		q.Push(items...)
		return 0, fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tx.Commit().Error; err != nil {
		q.Push(items...)
		return 0, fmt.Errorf("failed to commit %s: %w", name, err)
	}
	return len(items), nil
}

// writerLoop periodically drains queues into the DB.
func (b *Backend) writerLoop() {
	defer close(b.done)
	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Flush(); err != nil {
				b.log.Error("DB writer cycle failed", "error", err)
			}
		}
	}
}
