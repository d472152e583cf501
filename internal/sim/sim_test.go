package sim

import (
	"sync"
	"testing"
	"time"

	"github.com/OCAP2/dronesim/internal/command"
	"github.com/OCAP2/dronesim/internal/script"
	"github.com/OCAP2/dronesim/internal/status"
	"github.com/OCAP2/dronesim/internal/vehicle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dt = 0.05

var epoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type recorder struct {
	mu        sync.Mutex
	statuses  []StatusEvent
	commands  []CommandEvent
	snapshots []Snapshot
}

func (r *recorder) OnStatus(e StatusEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, e)
}

func (r *recorder) OnCommand(e CommandEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, e)
}

func (r *recorder) OnSnapshot(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, s)
}

func (r *recorder) statusKinds() []status.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]status.Kind, len(r.statuses))
	for i, s := range r.statuses {
		out[i] = s.Kind
	}
	return out
}

func newSim(t *testing.T, opts ...Option) *Simulation {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return epoch })}, opts...)
	s, err := New(DefaultConfig(), opts...)
	require.NoError(t, err)
	return s
}

// runUntilPaused steps until the loop pauses itself, failing after limit ticks.
func runUntilPaused(t *testing.T, s *Simulation, limit int) int {
	t.Helper()
	for i := 1; i <= limit; i++ {
		s.Step(dt)
		if s.State() == Paused {
			return i
		}
	}
	t.Fatalf("simulation still running after %d ticks", limit)
	return 0
}

func TestNew_Defaults(t *testing.T) {
	s := newSim(t)

	snap := s.Snapshot()
	assert.Equal(t, "PAUSED", snap.State)
	assert.False(t, snap.Flying)
	assert.Equal(t, vehicle.DefaultHome.X, snap.X)
	assert.Equal(t, vehicle.DefaultHome.Y, snap.Y)
	assert.Equal(t, vehicle.FullBattery, snap.Battery)
	assert.Equal(t, 0, snap.QueueLen)
	assert.Equal(t, 1, snap.PathLen)
	assert.Equal(t, ReadyMessage, s.Status().Detail)
	assert.Equal(t, status.Ready, s.Status().Kind)
}

func TestRunScript_TakeoffMoveLand(t *testing.T) {
	s := newSim(t)

	n, err := s.RunScript("TAKEOFF\nMOVE 100\nLAND\n")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, Running, s.State())
	assert.Equal(t, "Script queued: 3 commands. Running…", s.Status().Detail)

	runUntilPaused(t, s, 1000)

	snap := s.Snapshot()
	assert.False(t, snap.Flying)
	assert.InDelta(t, vehicle.DefaultHome.X+100, snap.X, 1.0)
	assert.InDelta(t, vehicle.DefaultHome.Y, snap.Y, 1e-9)
	assert.Equal(t, 0, snap.QueueLen)
	assert.Empty(t, s.Queue())
	assert.Equal(t, status.MissionComplete, s.Status().Kind)
	assert.Equal(t, "Mission complete (Queue empty)", s.Status().Detail)
}

func TestRunScript_MoveWhileGrounded(t *testing.T) {
	rec := &recorder{}
	s := newSim(t, WithListener(rec))

	_, err := s.RunScript("MOVE 10\n")
	require.NoError(t, err)

	ticks := runUntilPaused(t, s, 10)
	assert.Equal(t, 1, ticks)

	snap := s.Snapshot()
	assert.Equal(t, vehicle.DefaultHome.X, snap.X)
	assert.Equal(t, vehicle.DefaultHome.Y, snap.Y)
	assert.Contains(t, rec.statusKinds(), status.Ignored)
}

func TestRunScript_ParseErrorClearsQueue(t *testing.T) {
	s := newSim(t)

	_, err := s.RunScript("TAKEOFF\nWAIT 5\n")
	require.NoError(t, err)
	require.Len(t, s.Queue(), 2)

	_, err = s.RunScript("FOO\n")
	require.Error(t, err)

	var perr *script.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 1, perr.Line)
	assert.Empty(t, s.Queue())
	assert.Equal(t, status.ScriptError, s.Status().Kind)
	assert.Equal(t, "Script error on line 1: FOO", s.Status().Detail)
}

func TestRunScript_Empty(t *testing.T) {
	s := newSim(t)

	_, err := s.RunScript("TAKEOFF\n")
	require.NoError(t, err)

	_, err = s.RunScript("   \n\n")
	assert.ErrorIs(t, err, script.ErrEmpty)
	assert.Equal(t, "No script to run.", s.Status().Detail)
	assert.Equal(t, []string{"TAKEOFF"}, s.Queue(), "empty input leaves the queue alone")
	assert.Equal(t, "TAKEOFF\n", s.Script())
}

func TestRunScript_CommentsOnly(t *testing.T) {
	s := newSim(t)

	n, err := s.RunScript("# survey\n\n# nothing yet\n")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, Running, s.State())
	assert.Equal(t, "Script queued: 0 commands. Running…", s.Status().Detail)

	s.Step(dt)
	assert.Equal(t, Running, s.State())
	assert.Equal(t, status.ScriptQueued, s.Status().Kind)
}

func TestRunScript_NaNArgumentRejected(t *testing.T) {
	s := newSim(t)

	_, err := s.RunScript("TAKEOFF\nWAIT NaN\nLAND\n")

	var perr *script.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 2, perr.Line)
	assert.Empty(t, s.Queue())
	assert.Equal(t, Paused, s.State())
}

func TestRunScript_ReplacesQueue(t *testing.T) {
	s := newSim(t)

	_, err := s.RunScript("TAKEOFF\nWAIT 5\n")
	require.NoError(t, err)
	_, err = s.RunScript("takeoff\nturn 90\ngoto 300 300\n")
	require.NoError(t, err)

	assert.Equal(t, []string{"TAKEOFF", "TURN 90", "GOTO 300 300"}, s.Queue())
}

func TestStep_BatteryAutoLand(t *testing.T) {
	rec := &recorder{}
	s := newSim(t, WithListener(rec))

	ev := s.Takeoff()
	require.Equal(t, status.Takeoff, ev.Kind)

	snap := s.Step(240)
	assert.False(t, snap.Flying)
	assert.InDelta(t, 4.0, snap.Battery, 1e-9)
	assert.Equal(t, []status.Kind{status.Takeoff, status.BatteryCritical, status.Landing}, rec.statusKinds())
	assert.Equal(t, "Battery critically low! Auto-landing…", rec.statuses[1].Detail)
	assert.Equal(t, status.Landing, s.Status().Kind)

	snap = s.Step(10)
	assert.InDelta(t, 4.0, snap.Battery, 1e-9, "grounded vehicle does not drain")
}

func TestStep_BatteryNeverNegative(t *testing.T) {
	s := newSim(t)
	s.Takeoff()

	snap := s.Step(1000)
	assert.Equal(t, 0.0, snap.Battery)
}

func TestStep_PausedDoesNotAdvance(t *testing.T) {
	s := newSim(t)

	_, err := s.RunScript("TAKEOFF\nWAIT 1\n")
	require.NoError(t, err)

	assert.Equal(t, Paused, s.Toggle())
	assert.Equal(t, "Paused.", s.Status().Detail)

	for range 5 {
		s.Step(dt)
	}
	assert.False(t, s.Snapshot().Flying)
	assert.Len(t, s.Queue(), 2)

	assert.Equal(t, Running, s.Toggle())
	assert.Equal(t, "Running…", s.Status().Detail)

	s.Step(dt)
	assert.True(t, s.Snapshot().Flying)
	assert.Equal(t, []string{"WAIT 1"}, s.Queue())
}

func TestStep_OneResumptionPerTick(t *testing.T) {
	s := newSim(t)

	_, err := s.RunScript("TAKEOFF\nSETSPEED 200\nLAND\n")
	require.NoError(t, err)

	s.Step(dt)
	assert.Equal(t, []string{"SETSPEED 200", "LAND"}, s.Queue())
	s.Step(dt)
	assert.Equal(t, []string{"LAND"}, s.Queue())
	assert.Equal(t, 200.0, s.Snapshot().Speed)
	s.Step(dt)
	assert.Empty(t, s.Queue())
	assert.Equal(t, Paused, s.State())
}

func TestStop(t *testing.T) {
	s := newSim(t)

	_, err := s.RunScript("TAKEOFF\nMOVE 100\n")
	require.NoError(t, err)
	s.Step(dt)
	s.Step(dt)

	s.Stop()
	assert.Equal(t, Paused, s.State())
	assert.Empty(t, s.Queue())
	assert.Equal(t, "Stopped. (Queue cleared)", s.Status().Detail)
	assert.True(t, s.Snapshot().Flying, "stop does not land")
}

func TestReset(t *testing.T) {
	s := newSim(t)

	_, err := s.RunScript("TAKEOFF\nMOVE 100\n")
	require.NoError(t, err)
	for range 5 {
		s.Step(dt)
	}

	s.Reset()
	snap := s.Snapshot()
	assert.Equal(t, Paused, s.State())
	assert.False(t, snap.Flying)
	assert.Equal(t, vehicle.DefaultHome.X, snap.X)
	assert.Equal(t, vehicle.DefaultHome.Y, snap.Y)
	assert.Equal(t, vehicle.FullBattery, snap.Battery)
	assert.Equal(t, 1, snap.PathLen)
	assert.Equal(t, 0, snap.QueueLen)
	assert.Equal(t, "Reset complete.", s.Status().Detail)
}

func TestManualActions(t *testing.T) {
	s := newSim(t)

	assert.Equal(t, status.AlreadyGrounded, s.Land().Kind)
	assert.Equal(t, status.Takeoff, s.Takeoff().Kind)
	assert.Equal(t, status.AlreadyFlying, s.Takeoff().Kind)
	assert.Equal(t, status.Landing, s.Land().Kind)
	assert.Equal(t, Paused, s.State(), "manual actions do not start the loop")
}

func TestReturnHome(t *testing.T) {
	s := newSim(t)

	_, err := s.RunScript("TAKEOFF\nMOVE 120\n")
	require.NoError(t, err)
	runUntilPaused(t, s, 1000)

	s.ReturnHome()
	assert.Equal(t, []string{"HOME"}, s.Queue())
	assert.Equal(t, "Queued: Return Home", s.Status().Detail)
	assert.Equal(t, Paused, s.State())

	s.Toggle()
	runUntilPaused(t, s, 2000)

	snap := s.Snapshot()
	assert.Less(t, vehicle.DefaultHome.X-snap.X, command.ArrivalRadius)
	assert.InDelta(t, vehicle.DefaultHome.Y, snap.Y, command.ArrivalRadius)
	assert.True(t, snap.Flying)
}

func TestListener_Notifications(t *testing.T) {
	rec := &recorder{}
	s := newSim(t, WithListener(rec))

	_, err := s.RunScript("TAKEOFF\nLAND\n")
	require.NoError(t, err)
	s.Step(dt)
	s.Step(dt)

	assert.Equal(t, []status.Kind{
		status.ScriptQueued,
		status.Takeoff,
		status.Landing,
		status.MissionComplete,
	}, rec.statusKinds())

	require.Len(t, rec.commands, 4)
	assert.Equal(t, CommandEvent{Tick: 1, Time: epoch, Kind: command.KindTakeoff, Command: "TAKEOFF", Phase: PhaseStarted}, rec.commands[0])
	assert.Equal(t, PhaseCompleted, rec.commands[1].Phase)
	assert.Equal(t, status.Takeoff, rec.commands[1].Outcome)
	assert.Equal(t, command.KindLand, rec.commands[2].Kind)
	assert.Equal(t, status.Landing, rec.commands[3].Outcome)

	require.Len(t, rec.snapshots, 2)
	assert.Equal(t, uint64(2), rec.snapshots[1].Tick)
	assert.Equal(t, "PAUSED", rec.snapshots[1].State)
}

func TestListener_MayCallBack(t *testing.T) {
	var s *Simulation
	var huds []string
	s = newSim(t, WithListener(ListenerFuncs{
		Snapshot: func(Snapshot) { huds = append(huds, s.HUD()) },
	}))

	s.Step(dt)
	require.Len(t, huds, 1)
	assert.Contains(t, huds[0], "State: GROUND")
}

func TestTick_MeasuresElapsed(t *testing.T) {
	s := newSim(t)
	s.Takeoff()

	s.Tick(epoch.Add(10 * time.Second))
	assert.InDelta(t, vehicle.FullBattery-4, s.Snapshot().Battery, 1e-9)

	s.Tick(epoch.Add(5 * time.Second))
	assert.InDelta(t, vehicle.FullBattery-4, s.Snapshot().Battery, 1e-9, "clock going backwards counts as zero")
}

func TestHUD(t *testing.T) {
	snap := Snapshot{Flying: true, X: 180, Y: 300.24, Heading: 45, Speed: 140, Battery: 87.24, QueueLen: 3}
	want := "State: FLYING\nPos: (180.0, 300.2)\nHeading: 45.0°\nSpeed: 140px/s\nBattery: 87.2%\nQueue: 3 commands"
	assert.Equal(t, want, snap.HUD())
}
