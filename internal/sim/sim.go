// Package sim runs the mission loop: each tick drains the battery, resumes
// the head of the command queue once, and publishes a snapshot.
package sim

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/OCAP2/dronesim/internal/command"
	"github.com/OCAP2/dronesim/internal/queue"
	"github.com/OCAP2/dronesim/internal/script"
	"github.com/OCAP2/dronesim/internal/status"
	"github.com/OCAP2/dronesim/internal/vehicle"
)

// DefaultTickInterval targets roughly 60 ticks per second.
const DefaultTickInterval = 16 * time.Millisecond

// ReadyMessage is the status shown before anything has happened.
const ReadyMessage = "Ready. Space = Run/Pause • T=Takeoff • L=Land • R=Reset • H=Home • Esc=Stop"

// Config describes the vehicle and arena a Simulation starts with.
type Config struct {
	Home      vehicle.Point
	Speed     float64
	TurnSpeed float64
	Arena     vehicle.Arena
}

// DefaultConfig returns the stock arena and vehicle.
func DefaultConfig() Config {
	return Config{
		Home:      vehicle.DefaultHome,
		Speed:     vehicle.DefaultSpeed,
		TurnSpeed: vehicle.DefaultTurnSpeed,
		Arena:     vehicle.DefaultArena(),
	}
}

// Option configures a Simulation.
type Option func(*Simulation)

// WithClock overrides the wall clock used to stamp events.
func WithClock(now func() time.Time) Option {
	return func(s *Simulation) {
		s.now = now
	}
}

// WithListener subscribes l to status, command and snapshot notifications.
func WithListener(l Listener) Option {
	return func(s *Simulation) {
		s.listeners = append(s.listeners, l)
	}
}

// Simulation owns the vehicle, the arena and the command queue. Every
// public method is safe for concurrent use; the steppers themselves only
// ever run under the simulation lock.
type Simulation struct {
	mu        sync.Mutex
	vehicle   *vehicle.Vehicle
	arena     vehicle.Arena
	queue     *queue.Queue[command.Stepper]
	state     RunState
	headBegun bool
	tick      uint64
	last      time.Time
	status    status.Event
	script    string
	pending   []notice

	listeners []Listener
	metrics   *metrics
	now       func() time.Time
}

// New creates a paused simulation with the vehicle parked on home.
func New(cfg Config, opts ...Option) (*Simulation, error) {
	s := &Simulation{
		vehicle: vehicle.New(cfg.Home, cfg.Speed, cfg.TurnSpeed),
		arena:   cfg.Arena,
		queue:   queue.New[command.Stepper](),
		state:   Paused,
		status:  status.New(status.Ready, ReadyMessage),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.last = s.now()

	m, err := newMetrics(s)
	if err != nil {
		return nil, err
	}
	s.metrics = m
	return s, nil
}

// Subscribe adds a listener after construction.
func (s *Simulation) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Run ticks the simulation every interval until ctx is cancelled.
func (s *Simulation) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.mu.Lock()
	s.last = s.now()
	s.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			s.Tick(now)
		}
	}
}

// Tick advances the simulation using the wall time elapsed since the last tick.
func (s *Simulation) Tick(now time.Time) Snapshot {
	s.mu.Lock()
	dt := now.Sub(s.last).Seconds()
	if dt < 0 {
		dt = 0
	}
	s.last = now
	snap := s.stepLocked(dt, now)
	out, listeners := s.takePending()
	s.mu.Unlock()

	deliver(listeners, out)
	return snap
}

// Step advances the simulation by an explicit dt in seconds.
func (s *Simulation) Step(dt float64) Snapshot {
	s.mu.Lock()
	now := s.now()
	s.last = now
	snap := s.stepLocked(dt, now)
	out, listeners := s.takePending()
	s.mu.Unlock()

	deliver(listeners, out)
	return snap
}

func (s *Simulation) stepLocked(dt float64, now time.Time) Snapshot {
	s.tick++
	s.metrics.tick()

	for _, ev := range s.vehicle.DrainBattery(dt) {
		s.reportAt(ev, now)
	}

	if s.state == Running {
		if head, ok := s.queue.Peek(); ok {
			s.advanceHead(head, dt, now)
		}
	}

	snap := s.snapshotLocked(now)
	s.pending = append(s.pending, notice{snapshot: &snap})
	return snap
}

func (s *Simulation) advanceHead(head command.Stepper, dt float64, now time.Time) {
	if !s.headBegun {
		s.headBegun = true
		s.pending = append(s.pending, notice{command: &CommandEvent{
			Tick: s.tick, Time: now, Kind: head.Kind(), Command: head.String(), Phase: PhaseStarted,
		}})
	}

	res, ev := head.Advance(s.vehicle, &s.arena, dt)
	if !ev.Empty() {
		s.reportAt(ev, now)
	}
	if res != command.Done {
		return
	}

	s.queue.Pop()
	s.headBegun = false
	done := CommandEvent{
		Tick: s.tick, Time: now, Kind: head.Kind(), Command: head.String(), Phase: PhaseCompleted, Outcome: ev.Kind,
	}
	s.pending = append(s.pending, notice{command: &done})
	s.metrics.commandDone(done)

	if s.queue.Empty() {
		s.state = Paused
		s.reportAt(status.New(status.MissionComplete, "Mission complete (Queue empty)"), now)
	}
}

// RunScript replaces the queue with the parsed script and starts running.
// On a parse error the queue is left empty and the returned error is a
// *script.ParseError.
func (s *Simulation) RunScript(text string) (int, error) {
	s.mu.Lock()
	n, err := s.runScriptLocked(text)
	out, listeners := s.takePending()
	s.mu.Unlock()

	deliver(listeners, out)
	return n, err
}

func (s *Simulation) runScriptLocked(text string) (int, error) {
	steppers, err := script.Parse(text)
	if errors.Is(err, script.ErrEmpty) {
		s.report(status.New(status.NoScript, "No script to run."))
		return 0, err
	}

	s.queue.Clear()
	s.headBegun = false
	if err != nil {
		s.report(status.New(status.ScriptError, "%s", err))
		return 0, err
	}

	s.script = text
	s.queue.Replace(steppers)
	s.state = Running
	s.report(status.New(status.ScriptQueued, "Script queued: %d commands. Running…", len(steppers)))
	return len(steppers), nil
}

// Stop pauses and discards every queued command.
func (s *Simulation) Stop() {
	s.mu.Lock()
	s.stopLocked()
	out, listeners := s.takePending()
	s.mu.Unlock()

	deliver(listeners, out)
}

func (s *Simulation) stopLocked() {
	s.state = Paused
	s.queue.Clear()
	s.headBegun = false
	s.report(status.New(status.Stopped, "Stopped. (Queue cleared)"))
}

// Reset stops the mission and puts the vehicle back on its pad.
func (s *Simulation) Reset() {
	s.mu.Lock()
	s.stopLocked()
	s.vehicle.Reset()
	s.report(status.New(status.Reset, "Reset complete."))
	out, listeners := s.takePending()
	s.mu.Unlock()

	deliver(listeners, out)
}

// Toggle flips between running and paused.
func (s *Simulation) Toggle() RunState {
	s.mu.Lock()
	if s.state == Running {
		s.state = Paused
		s.report(status.New(status.Paused, "Paused."))
	} else {
		s.state = Running
		s.report(status.New(status.Running, "Running…"))
	}
	state := s.state
	out, listeners := s.takePending()
	s.mu.Unlock()

	deliver(listeners, out)
	return state
}

// Takeoff lifts off immediately, outside the queue.
func (s *Simulation) Takeoff() status.Event {
	return s.manual(s.vehicle.Takeoff)
}

// Land touches down immediately, outside the queue.
func (s *Simulation) Land() status.Event {
	return s.manual(s.vehicle.Land)
}

func (s *Simulation) manual(action func() status.Event) status.Event {
	s.mu.Lock()
	ev := action()
	s.report(ev)
	out, listeners := s.takePending()
	s.mu.Unlock()

	deliver(listeners, out)
	return ev
}

// ReturnHome appends a GOTO to the home point. It does not change the run state.
func (s *Simulation) ReturnHome() {
	s.mu.Lock()
	s.queue.Push(command.NewHome())
	s.report(status.New(status.HomeQueued, "Queued: Return Home"))
	out, listeners := s.takePending()
	s.mu.Unlock()

	deliver(listeners, out)
}

// Snapshot returns the current state without advancing.
func (s *Simulation) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(s.now())
}

// HUD renders the heads-up text for the current state.
func (s *Simulation) HUD() string {
	return s.Snapshot().HUD()
}

// Status returns the most recent status event.
func (s *Simulation) Status() status.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// State returns the run state.
func (s *Simulation) State() RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Queue renders the pending commands in script syntax, head first.
func (s *Simulation) Queue() []string {
	items := s.queue.Snapshot()
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.String()
	}
	return out
}

// Path returns a copy of the vehicle trail.
func (s *Simulation) Path() []vehicle.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]vehicle.Point, len(s.vehicle.Path))
	copy(out, s.vehicle.Path)
	return out
}

// Arena returns the arena the vehicle flies in.
func (s *Simulation) Arena() vehicle.Arena {
	return s.arena
}

// Script returns the text of the last script that parsed successfully.
func (s *Simulation) Script() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.script
}

func (s *Simulation) snapshotLocked(now time.Time) Snapshot {
	v := s.vehicle
	snap := Snapshot{
		Tick:      s.tick,
		Time:      now,
		State:     s.state.String(),
		Flying:    v.Flying,
		X:         v.X,
		Y:         v.Y,
		Heading:   v.Heading,
		Speed:     v.Speed,
		TurnSpeed: v.TurnSpeed,
		Altitude:  v.Altitude,
		Battery:   v.Battery,
		QueueLen:  s.queue.Len(),
		PathLen:   len(v.Path),
		Status:    s.status.Detail,
	}
	if head, ok := s.queue.Peek(); ok {
		snap.Current = head.String()
	}
	return snap
}

func (s *Simulation) report(ev status.Event) {
	s.reportAt(ev, s.now())
}

func (s *Simulation) reportAt(ev status.Event, now time.Time) {
	s.status = ev
	s.pending = append(s.pending, notice{status: &StatusEvent{Tick: s.tick, Time: now, Event: ev}})
}

func (s *Simulation) takePending() ([]notice, []Listener) {
	out := s.pending
	s.pending = nil
	return out, s.listeners
}
