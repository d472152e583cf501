package vehicle

import "math"

// Default arena geometry in screen pixels.
const (
	DefaultWidth           = 980.0
	DefaultHeight          = 640.0
	DefaultPad             = 20.0
	DefaultMargin          = 10.0
	DefaultCollisionRadius = 12.0
)

// Obstacle is a static axis-aligned rectangle.
type Obstacle struct {
	X1 float64 `json:"x1" mapstructure:"x1"`
	Y1 float64 `json:"y1" mapstructure:"y1"`
	X2 float64 `json:"x2" mapstructure:"x2"`
	Y2 float64 `json:"y2" mapstructure:"y2"`
}

// Distance returns the distance from (x, y) to the nearest point of the rectangle.
// Points inside the rectangle are at distance 0.
func (o Obstacle) Distance(x, y float64) float64 {
	cx := clamp(x, math.Min(o.X1, o.X2), math.Max(o.X1, o.X2))
	cy := clamp(y, math.Min(o.Y1, o.Y2), math.Max(o.Y1, o.Y2))
	return math.Hypot(x-cx, y-cy)
}

// Arena is the flyable area with its static obstacles.
type Arena struct {
	Width     float64
	Height    float64
	Pad       float64
	Margin    float64
	Radius    float64
	Obstacles []Obstacle
}

// DefaultObstacles returns the stock obstacle layout.
func DefaultObstacles() []Obstacle {
	return []Obstacle{
		{X1: 420, Y1: 140, X2: 580, Y2: 240},
		{X1: 700, Y1: 360, X2: 880, Y2: 500},
		{X1: 330, Y1: 420, X2: 520, Y2: 560},
	}
}

// DefaultArena returns the stock 980x640 arena.
func DefaultArena() Arena {
	return Arena{
		Width:     DefaultWidth,
		Height:    DefaultHeight,
		Pad:       DefaultPad,
		Margin:    DefaultMargin,
		Radius:    DefaultCollisionRadius,
		Obstacles: DefaultObstacles(),
	}
}

// Bounds returns the inclusive flyable box.
func (a *Arena) Bounds() (minX, minY, maxX, maxY float64) {
	inset := a.Pad + a.Margin
	return inset, inset, a.Width - inset, a.Height - inset
}

// InBounds reports whether (x, y) lies inside the flyable box.
func (a *Arena) InBounds(x, y float64) bool {
	minX, minY, maxX, maxY := a.Bounds()
	return x >= minX && x <= maxX && y >= minY && y <= maxY
}

// HitsObstacle reports whether a vehicle centred on (x, y) touches any obstacle.
func (a *Arena) HitsObstacle(x, y float64) bool {
	rr := a.Radius * a.Radius
	for _, o := range a.Obstacles {
		cx := clamp(x, math.Min(o.X1, o.X2), math.Max(o.X1, o.X2))
		cy := clamp(y, math.Min(o.Y1, o.Y2), math.Max(o.Y1, o.Y2))
		dx := x - cx
		dy := y - cy
		if dx*dx+dy*dy <= rr {
			return true
		}
	}
	return false
}

// clamp bounds v to [lo, hi]. NaN clamps to hi.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return hi
	}
	return math.Max(lo, math.Min(hi, v))
}
