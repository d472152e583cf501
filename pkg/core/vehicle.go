// pkg/core/vehicle.go
package core

import "time"

// Position2D is a point in arena pixels.
type Position2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// GeoPosition is a WGS84 coordinate.
type GeoPosition struct {
	Longitude float64 `json:"lon"`
	Latitude  float64 `json:"lat"`
	Altitude  float64 `json:"alt"`
}

// VehicleState is the drone state captured on one tick.
type VehicleState struct {
	Time     time.Time   `json:"time"`
	Tick     uint64      `json:"tick"`
	Position Position2D  `json:"position"`
	Geo      GeoPosition `json:"geo"`
	Heading  float64     `json:"heading"`
	Speed    float64     `json:"speed"`
	Altitude float64     `json:"altitude"`
	Battery  float64     `json:"battery"`
	Flying   bool        `json:"flying"`
	RunState string      `json:"runState"`
	QueueLen int         `json:"queueLen"`
	Command  string      `json:"command,omitempty"`
}
