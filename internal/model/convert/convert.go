// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"

	"github.com/OCAP2/dronesim/internal/geo"
	"github.com/OCAP2/dronesim/internal/model"
	"github.com/OCAP2/dronesim/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

// pixelPoint places an arena position on the map, or keeps raw pixels when
// no projector is configured. A position that cannot be represented is
// stored as an empty point.
func pixelPoint(proj *geo.Projector, x, y float64) geom.Point {
	var (
		pt  geom.Point
		err error
	)
	if proj == nil {
		pt, err = geom.NewPoint(geom.Coordinates{XY: geom.XY{X: x, Y: y}})
	} else {
		pt, err = proj.Point(x, y)
	}
	if err != nil {
		return geom.Point{}
	}
	return pt
}

// originPoint is the arena origin in EPSG:3857, empty when out of range.
func originPoint(lon, lat float64) geom.Point {
	pt, err := geo.Coords3857From4326(lon, lat)
	if err != nil {
		return geom.Point{}
	}
	return pt
}

// arenaToJSON converts a core.Arena to datatypes.JSON for DB storage.
func arenaToJSON(a core.Arena) datatypes.JSON {
	if a.Obstacles == nil {
		a.Obstacles = []core.Obstacle{}
	}
	data, err := json.Marshal(a)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(data)
}

// CoreToMission converts a core.Mission to a GORM model.Mission.
func CoreToMission(m core.Mission, proj *geo.Projector) model.Mission {
	out := model.Mission{
		UUID:             m.UUID,
		MissionName:      m.MissionName,
		Author:           m.Author,
		Tag:              m.Tag,
		StartTime:        m.StartTime,
		Script:           m.Script,
		Home:             pixelPoint(proj, m.HomeX, m.HomeY),
		HomeX:            m.HomeX,
		HomeY:            m.HomeY,
		Origin:           originPoint(m.OriginLongitude, m.OriginLatitude),
		MetersPerPixel:   m.MetersPerPixel,
		Arena:            arenaToJSON(m.Arena),
		ExtensionVersion: m.ExtensionVersion,
		ExtensionBuild:   m.ExtensionBuild,
	}
	out.ID = m.ID
	return out
}

// MissionToCore converts a GORM model.Mission back to a core.Mission.
func MissionToCore(m model.Mission) core.Mission {
	var arena core.Arena
	if len(m.Arena) > 0 {
		_ = json.Unmarshal(m.Arena, &arena)
	}
	out := core.Mission{
		ID:               m.ID,
		UUID:             m.UUID,
		MissionName:      m.MissionName,
		Author:           m.Author,
		Tag:              m.Tag,
		StartTime:        m.StartTime,
		Script:           m.Script,
		HomeX:            m.HomeX,
		HomeY:            m.HomeY,
		MetersPerPixel:   m.MetersPerPixel,
		Arena:            arena,
		ExtensionVersion: m.ExtensionVersion,
		ExtensionBuild:   m.ExtensionBuild,
	}
	if lon, lat, ok := geo.Coords4326From3857(m.Origin); ok {
		out.OriginLongitude, out.OriginLatitude = lon, lat
	}
	return out
}

// CoreToVehicleState converts a core.VehicleState to a GORM model.VehicleState.
func CoreToVehicleState(s core.VehicleState, missionID uint, proj *geo.Projector) model.VehicleState {
	return model.VehicleState{
		Time:      s.Time,
		MissionID: missionID,
		Tick:      s.Tick,
		Position:  pixelPoint(proj, s.Position.X, s.Position.Y),
		PixelX:    s.Position.X,
		PixelY:    s.Position.Y,
		Longitude: s.Geo.Longitude,
		Latitude:  s.Geo.Latitude,
		Altitude:  s.Altitude,
		Heading:   s.Heading,
		Speed:     s.Speed,
		Battery:   s.Battery,
		Flying:    s.Flying,
		RunState:  s.RunState,
		QueueLen:  s.QueueLen,
		Command:   s.Command,
	}
}

// VehicleStateToCore converts a GORM model.VehicleState back to a core.VehicleState.
func VehicleStateToCore(s model.VehicleState) core.VehicleState {
	return core.VehicleState{
		Time:     s.Time,
		Tick:     s.Tick,
		Position: core.Position2D{X: s.PixelX, Y: s.PixelY},
		Geo: core.GeoPosition{
			Longitude: s.Longitude,
			Latitude:  s.Latitude,
			Altitude:  s.Altitude,
		},
		Heading:  s.Heading,
		Speed:    s.Speed,
		Altitude: s.Altitude,
		Battery:  s.Battery,
		Flying:   s.Flying,
		RunState: s.RunState,
		QueueLen: s.QueueLen,
		Command:  s.Command,
	}
}

// CoreToStatusEvent converts a core.StatusEvent to a GORM model.StatusEvent.
func CoreToStatusEvent(e core.StatusEvent, missionID uint) model.StatusEvent {
	return model.StatusEvent{
		Time:      e.Time,
		MissionID: missionID,
		Tick:      e.Tick,
		Kind:      e.Kind,
		Detail:    e.Detail,
	}
}

// StatusEventToCore converts a GORM model.StatusEvent back to a core.StatusEvent.
func StatusEventToCore(e model.StatusEvent) core.StatusEvent {
	return core.StatusEvent{Time: e.Time, Tick: e.Tick, Kind: e.Kind, Detail: e.Detail}
}

// CoreToCommandEvent converts a core.CommandEvent to a GORM model.CommandEvent.
func CoreToCommandEvent(e core.CommandEvent, missionID uint) model.CommandEvent {
	return model.CommandEvent{
		Time:      e.Time,
		MissionID: missionID,
		Tick:      e.Tick,
		Kind:      e.Kind,
		Command:   e.Command,
		Phase:     e.Phase,
		Outcome:   e.Outcome,
	}
}

// CommandEventToCore converts a GORM model.CommandEvent back to a core.CommandEvent.
func CommandEventToCore(e model.CommandEvent) core.CommandEvent {
	return core.CommandEvent{
		Time:    e.Time,
		Tick:    e.Tick,
		Kind:    e.Kind,
		Command: e.Command,
		Phase:   e.Phase,
		Outcome: e.Outcome,
	}
}
