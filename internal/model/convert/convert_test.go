package convert

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/dronesim/internal/geo"
	"github.com/OCAP2/dronesim/pkg/core"
)

func sampleMission() core.Mission {
	return core.Mission{
		ID:              7,
		UUID:            "5f0c6d4e-1111-2222-3333-444455556666",
		MissionName:     "Survey",
		Author:          "ops",
		Tag:             "Sim",
		StartTime:       time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Script:          "TAKEOFF\nLAND",
		HomeX:           180,
		HomeY:           300,
		OriginLongitude: 10,
		OriginLatitude:  56,
		MetersPerPixel:  0.5,
		Arena: core.Arena{
			Width: 980, Height: 640, Radius: 12,
			Obstacles: []core.Obstacle{{X1: 420, Y1: 140, X2: 580, Y2: 240}},
		},
		ExtensionVersion: "1.0.0",
	}
}

func TestMissionRoundTrip(t *testing.T) {
	proj, err := geo.NewProjector(10, 56, 0.5)
	require.NoError(t, err)

	m := sampleMission()
	gm := CoreToMission(m, proj)

	assert.Equal(t, uint(7), gm.ID)
	assert.JSONEq(t, `{"width":980,"height":640,"radius":12,"obstacles":[{"x1":420,"y1":140,"x2":580,"y2":240}]}`, string(gm.Arena))
	home, ok := gm.Home.XY()
	require.True(t, ok)
	wantPt, err := proj.Point(180, 300)
	require.NoError(t, err)
	want, _ := wantPt.XY()
	assert.Equal(t, want, home)

	back := MissionToCore(gm)
	assert.InDelta(t, 10.0, back.OriginLongitude, 1e-9)
	assert.InDelta(t, 56.0, back.OriginLatitude, 1e-9)
	back.OriginLongitude, back.OriginLatitude = m.OriginLongitude, m.OriginLatitude
	assert.Equal(t, m, back)
}

func TestCoreToMission_EmptyObstacles(t *testing.T) {
	m := sampleMission()
	m.Arena.Obstacles = nil

	gm := CoreToMission(m, nil)
	assert.Contains(t, string(gm.Arena), `"obstacles":[]`)

	home, ok := gm.Home.XY()
	require.True(t, ok)
	assert.Equal(t, 180.0, home.X)
	assert.Equal(t, 300.0, home.Y)
}

func TestVehicleStateRoundTrip(t *testing.T) {
	s := core.VehicleState{
		Time:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Tick:     42,
		Position: core.Position2D{X: 200, Y: 310},
		Geo:      core.GeoPosition{Longitude: 10.1, Latitude: 55.9, Altitude: 1},
		Heading:  90,
		Speed:    140,
		Altitude: 1,
		Battery:  97.5,
		Flying:   true,
		RunState: "RUNNING",
		QueueLen: 3,
		Command:  "MOVE 160",
	}

	gs := CoreToVehicleState(s, 9, nil)
	assert.Equal(t, uint(9), gs.MissionID)
	assert.Equal(t, 200.0, gs.PixelX)
	assert.Equal(t, 10.1, gs.Longitude)

	assert.Equal(t, s, VehicleStateToCore(gs))
}

func TestCoreToVehicleState_NonFinitePositionIsEmpty(t *testing.T) {
	proj, err := geo.NewProjector(10, 56, 0.5)
	require.NoError(t, err)

	gs := CoreToVehicleState(core.VehicleState{Position: core.Position2D{X: math.NaN(), Y: 1}}, 1, proj)
	assert.True(t, gs.Position.IsEmpty())

	gs = CoreToVehicleState(core.VehicleState{Position: core.Position2D{X: 1, Y: 1}}, 1, proj)
	assert.False(t, gs.Position.IsEmpty())
}

func TestEventRoundTrip(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	se := core.StatusEvent{Time: now, Tick: 3, Kind: "takeoff", Detail: "Takeoff"}
	gse := CoreToStatusEvent(se, 4)
	assert.Equal(t, uint(4), gse.MissionID)
	assert.Equal(t, se, StatusEventToCore(gse))

	ce := core.CommandEvent{Time: now, Tick: 3, Kind: "MOVE", Command: "MOVE 10", Phase: "completed", Outcome: "boundary_stop"}
	gce := CoreToCommandEvent(ce, 4)
	assert.Equal(t, uint(4), gce.MissionID)
	assert.Equal(t, ce, CommandEventToCore(gce))
}
