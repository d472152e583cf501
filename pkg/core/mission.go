// pkg/core/mission.go
package core

import "time"

// Arena describes the flying area a mission ran in.
type Arena struct {
	Width     float64    `json:"width"`
	Height    float64    `json:"height"`
	Radius    float64    `json:"radius"`
	Obstacles []Obstacle `json:"obstacles"`
}

// Obstacle is an axis-aligned no-fly rectangle in arena pixels.
type Obstacle struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Mission represents one recorded flight session, from start-up or reset
// until shutdown.
type Mission struct {
	ID               uint      `json:"id"`
	UUID             string    `json:"uuid"`
	MissionName      string    `json:"missionName"`
	Author           string    `json:"author"`
	Tag              string    `json:"tag"`
	StartTime        time.Time `json:"startTime"`
	Script           string    `json:"script"`
	HomeX            float64   `json:"homeX"`
	HomeY            float64   `json:"homeY"`
	OriginLongitude  float64   `json:"originLongitude"`
	OriginLatitude   float64   `json:"originLatitude"`
	MetersPerPixel   float64   `json:"metersPerPixel"`
	Arena            Arena     `json:"arena"`
	ExtensionVersion string    `json:"extensionVersion"`
	ExtensionBuild   string    `json:"extensionBuild"`
}
