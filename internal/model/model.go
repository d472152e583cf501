package model

import (
	"database/sql"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Mission{},
	&VehicleState{},
	&StatusEvent{},
	&CommandEvent{},
	&RecorderPerformance{},
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// RecorderPerformance is the model for recorder throughput, written on every flush
type RecorderPerformance struct {
	Time                time.Time `json:"time" gorm:"index:idx_time"`
	MissionID           uint      `json:"missionId" gorm:"index:idx_recorderperformance_mission_id"`
	Mission             Mission   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:MissionID;"`
	VehicleStates       uint32    `json:"vehicleStates"`
	StatusEvents        uint32    `json:"statusEvents"`
	CommandEvents       uint32    `json:"commandEvents"`
	LastWriteDurationMs float32   `json:"lastWriteDurationMs"`
}

func (*RecorderPerformance) TableName() string {
	return "recorder_performances"
}

////////////////////////
// RECORDING MODELS
////////////////////////

// Mission is one recorded flight session
type Mission struct {
	gorm.Model
	UUID             string         `json:"uuid" gorm:"size:36;uniqueIndex"`
	MissionName      string         `json:"missionName" gorm:"size:200"`
	Author           string         `json:"author" gorm:"size:64"`
	Tag              string         `json:"tag" gorm:"size:127"`
	StartTime        time.Time      `json:"startTime"`
	EndTime          sql.NullTime   `json:"endTime"`
	Script           string         `json:"script" gorm:"size:8000"`
	Home             geom.Point     `json:"home"`                        // Home pad in EPSG:3857
	HomeX            float64        `json:"homeX"`                       // Home pad in arena pixels
	HomeY            float64        `json:"homeY"`                       // Home pad in arena pixels
	Origin           geom.Point     `json:"origin"`                      // Arena top-left corner in EPSG:3857
	MetersPerPixel   float64        `json:"metersPerPixel"`              // Ground scale of the arena
	Arena            datatypes.JSON `json:"arena" gorm:"default:'{}'"` // Bounds, pad and obstacles
	Track            geom.Geometry  `json:"-"`                           // LineString of the flight path, written on end
	DistanceMeters   float64        `json:"distanceMeters"`
	CommandCount     uint           `json:"commandCount"`
	ExtensionVersion string         `json:"extensionVersion" gorm:"size:64"`
	ExtensionBuild   string         `json:"extensionBuild" gorm:"size:64"`
}

func (*Mission) TableName() string {
	return "missions"
}

// VehicleState tracks the drone at one tick
type VehicleState struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time `json:"time"` // Wall time of the tick
	MissionID uint      `json:"missionId" gorm:"index:idx_vehiclestate_mission_id"`
	Mission   Mission   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:MissionID;"`
	Tick      uint64    `json:"tick" gorm:"index:idx_vehiclestate_tick"`

	Position  geom.Point `json:"position"`              // EPSG:3857
	PixelX    float64    `json:"pixelX"`                // Arena x
	PixelY    float64    `json:"pixelY"`                // Arena y
	Longitude float64    `json:"longitude"`             // WGS84
	Latitude  float64    `json:"latitude"`              // WGS84
	Altitude  float64    `json:"altitude"`              // Metres above the pad
	Heading   float64    `json:"heading"`               // Degrees, 0 = east, clockwise
	Speed     float64    `json:"speed"`                 // Pixels per second
	Battery   float64    `json:"battery"`               // Percent
	Flying    bool       `json:"flying"`
	RunState  string     `json:"runState" gorm:"size:16"`
	QueueLen  int        `json:"queueLen"`
	Command   string     `json:"command" gorm:"size:64"` // Head of the queue
}

func (*VehicleState) TableName() string {
	return "vehicle_states"
}

// StatusEvent is a human-readable status report
type StatusEvent struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time `json:"time"`
	MissionID uint      `json:"missionId" gorm:"index:idx_statusevent_mission_id"`
	Mission   Mission   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:MissionID;"`
	Tick      uint64    `json:"tick"`
	Kind      string    `json:"kind" gorm:"size:32;index:idx_statusevent_kind"`
	Detail    string    `json:"detail" gorm:"size:255"`
}

func (*StatusEvent) TableName() string {
	return "status_events"
}

// CommandEvent marks a queued command starting or completing
type CommandEvent struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time `json:"time"`
	MissionID uint      `json:"missionId" gorm:"index:idx_commandevent_mission_id"`
	Mission   Mission   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:MissionID;"`
	Tick      uint64    `json:"tick"`
	Kind      string    `json:"kind" gorm:"size:16"`
	Command   string    `json:"command" gorm:"size:64"`
	Phase     string    `json:"phase" gorm:"size:16"`
	Outcome   string    `json:"outcome" gorm:"size:32"`
}

func (*CommandEvent) TableName() string {
	return "command_events"
}
