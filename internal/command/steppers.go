package command

import (
	"math"

	"github.com/OCAP2/dronesim/internal/status"
	"github.com/OCAP2/dronesim/internal/vehicle"
)

// Wait idles until the accumulated tick time reaches Seconds.
type Wait struct {
	Seconds float64
	elapsed float64
}

// NewWait creates a WAIT stepper.
func NewWait(seconds float64) *Wait {
	return &Wait{Seconds: seconds}
}

func (w *Wait) Kind() Kind     { return KindWait }
func (w *Wait) String() string { return format(KindWait, w.Seconds) }

// Elapsed returns the time waited so far.
func (w *Wait) Elapsed() float64 { return w.elapsed }

func (w *Wait) Advance(_ *vehicle.Vehicle, _ *vehicle.Arena, dt float64) (Result, status.Event) {
	// written as !(a < b) so a NaN duration finishes at once
	if !(w.elapsed < w.Seconds) {
		return Done, status.Event{}
	}
	w.elapsed += dt
	if !(w.elapsed < w.Seconds) {
		return Done, status.Event{}
	}
	return Continue, status.Event{}
}

// Turn rotates the heading by a signed number of degrees.
type Turn struct {
	Degrees   float64
	remaining float64
	started   bool
}

// NewTurn creates a TURN stepper. Positive degrees turn left.
func NewTurn(degrees float64) *Turn {
	return &Turn{Degrees: degrees}
}

func (t *Turn) Kind() Kind     { return KindTurn }
func (t *Turn) String() string { return format(KindTurn, t.Degrees) }

// Remaining returns the rotation still to perform.
func (t *Turn) Remaining() float64 {
	if !t.started {
		return t.Degrees
	}
	return t.remaining
}

func (t *Turn) Advance(v *vehicle.Vehicle, _ *vehicle.Arena, dt float64) (Result, status.Event) {
	if !v.Flying {
		return Done, ignored(KindTurn)
	}
	if !t.started {
		t.remaining = t.Degrees
		t.started = true
	}
	if math.IsNaN(t.remaining) || math.Abs(t.remaining) <= TurnTolerance {
		return Done, status.Event{}
	}

	step := math.Copysign(math.Min(math.Abs(t.remaining), v.TurnSpeed*dt), t.remaining)
	v.Rotate(step)
	t.remaining -= step

	if math.Abs(t.remaining) <= TurnTolerance {
		return Done, status.Event{}
	}
	return Continue, status.Event{}
}

// Move flies forward along the current heading. Negative distances fly backwards.
type Move struct {
	Distance  float64
	remaining float64
	started   bool
}

// NewMove creates a MOVE stepper.
func NewMove(distance float64) *Move {
	return &Move{Distance: distance}
}

func (m *Move) Kind() Kind     { return KindMove }
func (m *Move) String() string { return format(KindMove, m.Distance) }

// Remaining returns the distance still to fly.
func (m *Move) Remaining() float64 {
	if !m.started {
		return m.Distance
	}
	return m.remaining
}

func (m *Move) Advance(v *vehicle.Vehicle, arena *vehicle.Arena, dt float64) (Result, status.Event) {
	if !v.Flying {
		return Done, ignored(KindMove)
	}
	if !m.started {
		m.remaining = m.Distance
		m.started = true
	}
	if math.IsNaN(m.remaining) || math.Abs(m.remaining) <= MoveTolerance {
		return Done, status.Event{}
	}

	step := math.Copysign(math.Min(math.Abs(m.remaining), v.Speed*dt), m.remaining)
	nx, ny := v.Ahead(step)

	if !arena.InBounds(nx, ny) {
		return Done, status.New(status.BoundaryStop, "Boundary reached. Movement stopped.")
	}
	if arena.HitsObstacle(nx, ny) {
		return Done, status.New(status.ObstacleStop, "Obstacle collision detected. Movement stopped.")
	}

	v.MoveTo(nx, ny)
	m.remaining -= step

	if math.Abs(m.remaining) <= MoveTolerance {
		return Done, status.Event{}
	}
	return Continue, status.Event{}
}

// Goto steers toward a target point, turning in place until roughly aligned
// and then flying forward.
type Goto struct {
	Target vehicle.Point
	home   bool
	aimed  bool
}

// NewGoto creates a GOTO stepper for a fixed target.
func NewGoto(x, y float64) *Goto {
	return &Goto{Target: vehicle.Point{X: x, Y: y}, aimed: true}
}

// NewHome creates a GOTO stepper whose target is the vehicle's home,
// resolved on first resumption.
func NewHome() *Goto {
	return &Goto{home: true}
}

func (g *Goto) Kind() Kind {
	if g.home {
		return KindHome
	}
	return KindGoto
}

func (g *Goto) String() string {
	if g.home {
		return string(KindHome)
	}
	return format(KindGoto, g.Target.X, g.Target.Y)
}

func (g *Goto) Advance(v *vehicle.Vehicle, arena *vehicle.Arena, dt float64) (Result, status.Event) {
	if !v.Flying {
		return Done, ignored(KindGoto)
	}
	if !g.aimed {
		g.Target = v.Home
		g.aimed = true
	}

	dx := g.Target.X - v.X
	dy := v.Y - g.Target.Y
	dist := math.Hypot(dx, dy)
	if math.IsNaN(dist) || dist < ArrivalRadius {
		return Done, status.Event{}
	}

	diff := HeadingError(v.Heading, BearingDeg(dx, dy))
	if math.Abs(diff) > AimTolerance {
		step := math.Copysign(math.Min(math.Abs(diff), v.TurnSpeed*dt), diff)
		v.Rotate(step)
		return Continue, status.Event{}
	}

	nx, ny := v.Ahead(math.Min(dist, v.Speed*dt))
	if !arena.InBounds(nx, ny) {
		return Done, status.New(status.BoundaryStop, "Boundary reached during GOTO. Stopping.")
	}
	if arena.HitsObstacle(nx, ny) {
		return Done, status.New(status.ObstacleStop, "Obstacle hit during GOTO. Stopping.")
	}
	v.MoveTo(nx, ny)

	if v.DistanceTo(g.Target) < ArrivalRadius {
		return Done, status.Event{}
	}
	return Continue, status.Event{}
}

// BearingDeg converts a y-up displacement into a heading in [0, 360).
func BearingDeg(dx, dy float64) float64 {
	deg := math.Mod(math.Atan2(dy, dx)*180/math.Pi, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// HeadingError returns the shortest signed turn from current to target, in (-180, 180].
func HeadingError(current, target float64) float64 {
	d := math.Mod(target-current+540, 360)
	if d < 0 {
		d += 360
	}
	return d - 180
}

// Instant wraps a one-shot vehicle action.
type Instant struct {
	Action Kind
	Value  float64
}

// NewTakeoff creates a TAKEOFF stepper.
func NewTakeoff() *Instant { return &Instant{Action: KindTakeoff} }

// NewLand creates a LAND stepper.
func NewLand() *Instant { return &Instant{Action: KindLand} }

// NewSetSpeed creates a SETSPEED stepper.
func NewSetSpeed(speed float64) *Instant { return &Instant{Action: KindSetSpeed, Value: speed} }

func (i *Instant) Kind() Kind { return i.Action }

func (i *Instant) String() string {
	if i.Action == KindSetSpeed {
		return format(KindSetSpeed, i.Value)
	}
	return string(i.Action)
}

func (i *Instant) Advance(v *vehicle.Vehicle, _ *vehicle.Arena, _ float64) (Result, status.Event) {
	switch i.Action {
	case KindTakeoff:
		return Done, v.Takeoff()
	case KindLand:
		return Done, v.Land()
	case KindSetSpeed:
		return Done, v.SetSpeed(i.Value)
	}
	return Done, status.Event{}
}
