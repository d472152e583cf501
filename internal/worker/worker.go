// Package worker records what the simulation reports: every status and
// command event, and sampled vehicle states, are handed to the storage
// backend and InfluxDB from a single writer goroutine.
package worker

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/OCAP2/dronesim/internal/geo"
	"github.com/OCAP2/dronesim/internal/influx"
	"github.com/OCAP2/dronesim/internal/mission"
	"github.com/OCAP2/dronesim/internal/sim"
	"github.com/OCAP2/dronesim/internal/storage"
	"github.com/OCAP2/dronesim/pkg/core"
)

// DefaultBufferSize is the number of records that may wait for the writer.
const DefaultBufferSize = 4096

// ErrClosed is returned by mission calls after Close.
var ErrClosed = errors.New("worker closed")

// PointWriter accepts InfluxDB points. *influx.Manager implements it.
type PointWriter interface {
	WritePoint(bucket string, point *influxdb2_write.Point) error
}

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Backend        storage.Backend
	Influx         PointWriter    // optional
	Projector      *geo.Projector // optional; Geo stays zero without it
	MissionContext *mission.Context
	Logger         *slog.Logger
	// StateInterval is the minimum spacing between recorded vehicle states.
	// Zero records every tick. A takeoff or landing is always recorded.
	StateInterval time.Duration
	BufferSize    int
}

type record struct {
	state   *core.VehicleState
	status  *core.StatusEvent
	command *core.CommandEvent
	start   *core.Mission
	end     bool
	result  chan error
}

// Stats reports the worker's throughput.
type Stats struct {
	Recorded uint64
	Dropped  uint64
	Pending  int
}

// Manager is a sim.Listener feeding the recorders.
type Manager struct {
	deps Dependencies
	log  *slog.Logger

	records chan record
	done    chan struct{}

	mu         sync.Mutex
	closed     bool
	lastState  time.Time
	lastFlying bool

	recorded  atomic.Uint64
	dropped   atomic.Uint64
	sinceSync int
	writeTime time.Duration
}

// NewManager creates a worker manager and starts its writer goroutine.
func NewManager(deps Dependencies) *Manager {
	if deps.BufferSize <= 0 {
		deps.BufferSize = DefaultBufferSize
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	m := &Manager{
		deps:    deps,
		log:     log,
		records: make(chan record, deps.BufferSize),
		done:    make(chan struct{}),
	}
	go m.loop()
	return m
}

// GetLastDBWriteDuration returns the backend's last batch write time, or 0
// when the backend writes records one at a time.
func (m *Manager) GetLastDBWriteDuration() time.Duration {
	if p, ok := m.deps.Backend.(storage.WriteTimer); ok {
		return p.GetLastDBWriteDuration()
	}
	return 0
}

// Stats returns counters since the manager was created.
func (m *Manager) Stats() Stats {
	return Stats{
		Recorded: m.recorded.Load(),
		Dropped:  m.dropped.Load(),
		Pending:  len(m.records),
	}
}

// OnSnapshot samples vehicle states. States are dropped rather than block
// the simulation when the writer falls behind.
func (m *Manager) OnSnapshot(s sim.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	due := m.lastState.IsZero() ||
		m.deps.StateInterval <= 0 ||
		s.Time.Sub(m.lastState) >= m.deps.StateInterval ||
		s.Flying != m.lastFlying
	if !due {
		return
	}
	m.lastState = s.Time
	m.lastFlying = s.Flying

	st := VehicleState(s, m.deps.Projector)
	select {
	case m.records <- record{state: &st}:
	default:
		m.dropped.Add(1)
	}
}

func (m *Manager) OnStatus(e sim.StatusEvent) {
	ev := StatusEvent(e)
	m.enqueue(record{status: &ev})
}

func (m *Manager) OnCommand(e sim.CommandEvent) {
	ev := CommandEvent(e)
	m.enqueue(record{command: &ev})
}

func (m *Manager) enqueue(r record) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.records <- r
	return true
}

// call runs a control record on the writer goroutine and waits for it.
func (m *Manager) call(r record) error {
	r.result = make(chan error, 1)
	if !m.enqueue(r) {
		return ErrClosed
	}
	return <-r.result
}

// StartMission begins recording mission. Everything queued before it is
// written first.
func (m *Manager) StartMission(mission *core.Mission) error {
	m.mu.Lock()
	m.lastState = time.Time{}
	m.mu.Unlock()
	return m.call(record{start: mission})
}

// EndMission writes everything queued, then closes the mission in the backend.
func (m *Manager) EndMission() error {
	return m.call(record{end: true})
}

// Flush waits until every queued record has been handed to the backend and,
// when the backend batches writes, until that batch is persisted.
func (m *Manager) Flush() error {
	return m.call(record{})
}

// Close drains the queue and stops the writer. It does not end the mission.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		<-m.done
		return
	}
	m.closed = true
	close(m.records)
	m.mu.Unlock()
	<-m.done
}

func (m *Manager) loop() {
	defer close(m.done)
	for r := range m.records {
		m.handle(r)
	}
	m.sync()
}

func (m *Manager) handle(r record) {
	switch {
	case r.start != nil:
		m.sync()
		r.result <- m.deps.Backend.StartMission(r.start)
	case r.end:
		m.sync()
		r.result <- m.deps.Backend.EndMission()
	case r.state != nil:
		m.write("vehicle state", func() error { return m.deps.Backend.RecordVehicleState(r.state) })
		m.point(influx.TelemetryBucket(), func(id string) *influxdb2_write.Point { return influx.StatePoint(id, *r.state) })
	case r.status != nil:
		m.write("status event", func() error { return m.deps.Backend.RecordStatusEvent(r.status) })
		m.point(influx.TelemetryBucket(), func(id string) *influxdb2_write.Point { return influx.StatusPoint(id, *r.status) })
	case r.command != nil:
		m.write("command event", func() error { return m.deps.Backend.RecordCommandEvent(r.command) })
		m.point(influx.TelemetryBucket(), func(id string) *influxdb2_write.Point { return influx.CommandPoint(id, *r.command) })
	default:
		m.sync()
		if f, ok := m.deps.Backend.(storage.Flusher); ok {
			r.result <- f.Flush()
			return
		}
		r.result <- nil
	}
}

func (m *Manager) write(what string, fn func() error) {
	start := time.Now()
	err := fn()
	m.writeTime += time.Since(start)
	if err != nil {
		m.log.Warn("Failed to record "+what, "error", err)
		return
	}
	m.recorded.Add(1)
	m.sinceSync++
}

func (m *Manager) point(bucket string, build func(missionUUID string) *influxdb2_write.Point) {
	if m.deps.Influx == nil {
		return
	}
	if err := m.deps.Influx.WritePoint(bucket, build(m.missionUUID())); err != nil {
		m.log.Debug("Failed to write telemetry point", "bucket", bucket, "error", err)
	}
}

// sync reports writer throughput since the previous sync.
func (m *Manager) sync() {
	if m.sinceSync == 0 {
		return
	}
	n, took := m.sinceSync, m.writeTime
	m.sinceSync, m.writeTime = 0, 0
	m.point(influx.BucketPerformance, func(id string) *influxdb2_write.Point {
		return influx.WriterPoint(id, n, took, time.Now())
	})
}

func (m *Manager) missionUUID() string {
	if m.deps.MissionContext == nil {
		return ""
	}
	return m.deps.MissionContext.GetMission().UUID
}
