// Package vehicle holds the simulated drone state and the arena it flies in.
package vehicle

import (
	"math"

	"github.com/OCAP2/dronesim/internal/status"
)

// Flight limits.
const (
	DefaultSpeed     = 120.0
	DefaultTurnSpeed = 120.0
	MinSpeed         = 40.0
	MaxSpeed         = 300.0

	FullBattery       = 100.0
	DrainRate         = 0.4 // percent per simulated second while flying
	CriticalBattery   = 5.0
	MinTakeoffBattery = 2.0
)

// Point is a position in arena pixels, y pointing down.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DefaultHome is the stock take-off pad.
var DefaultHome = Point{X: 180, Y: 300}

// Vehicle is the mutable drone state. Heading is in degrees, 0 east,
// counter-clockwise positive.
type Vehicle struct {
	X         float64
	Y         float64
	Heading   float64
	Speed     float64
	TurnSpeed float64
	Altitude  float64
	Battery   float64
	Flying    bool
	Home      Point
	Path      []Point
}

// New creates a grounded vehicle parked on home.
func New(home Point, speed, turnSpeed float64) *Vehicle {
	v := &Vehicle{
		Home:      home,
		Speed:     speed,
		TurnSpeed: turnSpeed,
	}
	v.Reset()
	return v
}

// Reset returns the vehicle to home, on the ground, with a full battery and
// a single-point trail. Speed and turn speed are kept.
func (v *Vehicle) Reset() {
	v.X, v.Y = v.Home.X, v.Home.Y
	v.Heading = 0
	v.Altitude = 0
	v.Flying = false
	v.Battery = FullBattery
	v.Path = []Point{{X: v.X, Y: v.Y}}
}

// Position returns the current position.
func (v *Vehicle) Position() Point {
	return Point{X: v.X, Y: v.Y}
}

// MoveTo commits a new position and extends the trail.
func (v *Vehicle) MoveTo(x, y float64) {
	v.X, v.Y = x, y
	v.Path = append(v.Path, Point{X: x, Y: y})
}

// Rotate turns the heading by delta degrees, normalised to [0, 360).
func (v *Vehicle) Rotate(delta float64) {
	h := math.Mod(v.Heading+delta, 360)
	if h < 0 {
		h += 360
	}
	v.Heading = h
}

// Ahead returns the point step pixels along the current heading.
func (v *Vehicle) Ahead(step float64) (float64, float64) {
	rad := v.Heading * math.Pi / 180
	return v.X + math.Cos(rad)*step, v.Y - math.Sin(rad)*step
}

// Takeoff lifts off unless already airborne or the battery is too low.
func (v *Vehicle) Takeoff() status.Event {
	if v.Flying {
		return status.New(status.AlreadyFlying, "Already flying.")
	}
	if v.Battery <= MinTakeoffBattery {
		return status.New(status.BatteryTooLow, "Battery too low. Reset or recharge (sim).")
	}
	v.Flying = true
	v.Altitude = 1
	v.Path = append(v.Path, Point{X: v.X, Y: v.Y})
	return status.New(status.Takeoff, "Takeoff")
}

// Land touches down unless already grounded.
func (v *Vehicle) Land() status.Event {
	if !v.Flying {
		return status.New(status.AlreadyGrounded, "Already on ground.")
	}
	v.Flying = false
	v.Altitude = 0
	return status.New(status.Landing, "Landing")
}

// SetSpeed clamps and applies a forward speed.
func (v *Vehicle) SetSpeed(speed float64) status.Event {
	v.Speed = clamp(speed, MinSpeed, MaxSpeed)
	return status.New(status.SpeedSet, "Speed set to %.0f", v.Speed)
}

// DrainBattery consumes charge for dt seconds of flight. When the charge
// reaches the critical level the vehicle lands itself and the battery
// warning is returned followed by the landing; otherwise nil.
func (v *Vehicle) DrainBattery(dt float64) []status.Event {
	if !v.Flying {
		return nil
	}
	v.Battery = math.Max(0, v.Battery-DrainRate*dt)
	if v.Battery <= CriticalBattery {
		warn := status.New(status.BatteryCritical, "Battery critically low! Auto-landing…")
		return []status.Event{warn, v.Land()}
	}
	return nil
}

// DistanceTo returns the straight-line distance to p.
func (v *Vehicle) DistanceTo(p Point) float64 {
	return math.Hypot(p.X-v.X, p.Y-v.Y)
}
