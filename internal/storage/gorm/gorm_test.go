package gormstorage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/OCAP2/dronesim/internal/database"
	"github.com/OCAP2/dronesim/internal/geo"
	"github.com/OCAP2/dronesim/internal/model"
	"github.com/OCAP2/dronesim/pkg/core"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.GetSqliteDB("")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newTestBackend(t *testing.T) (*Backend, *gorm.DB) {
	t.Helper()
	proj, err := geo.NewProjector(10, 56, 0.5)
	require.NoError(t, err)

	db := newTestDB(t)
	b := New(Dependencies{DB: db, Projector: proj, FlushInterval: time.Hour})
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })
	return b, db
}

func testMission() *core.Mission {
	return &core.Mission{
		UUID:        "gorm-mission",
		MissionName: "Gorm",
		StartTime:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		HomeX:       180,
		HomeY:       300,
		Arena:       core.Arena{Width: 980, Height: 640, Radius: 12},
	}
}

func TestInit_NoDB(t *testing.T) {
	b := New(Dependencies{})
	assert.ErrorIs(t, b.Init(), ErrNoDB)
	assert.ErrorIs(t, b.StartMission(testMission()), ErrNoDB)
	assert.NoError(t, b.Close())
}

func TestInit_Migrates(t *testing.T) {
	_, db := newTestBackend(t)
	for _, m := range model.DatabaseModels {
		assert.True(t, db.Migrator().HasTable(m), "%T", m)
	}
}

func TestRecordBeforeStart(t *testing.T) {
	b, _ := newTestBackend(t)

	assert.ErrorIs(t, b.RecordVehicleState(&core.VehicleState{}), ErrNoMission)
	assert.ErrorIs(t, b.RecordStatusEvent(&core.StatusEvent{}), ErrNoMission)
	assert.ErrorIs(t, b.RecordCommandEvent(&core.CommandEvent{}), ErrNoMission)
	assert.NoError(t, b.EndMission())
}

func TestStartMission_AssignsID(t *testing.T) {
	b, db := newTestBackend(t)

	m := testMission()
	require.NoError(t, b.StartMission(m))
	assert.NotZero(t, m.ID)
	assert.Equal(t, m.ID, b.MissionID())

	var stored model.Mission
	require.NoError(t, db.First(&stored, m.ID).Error)
	assert.Equal(t, "gorm-mission", stored.UUID)
	assert.Contains(t, string(stored.Arena), `"width":980`)
}

func TestRecord_QueuesUntilFlush(t *testing.T) {
	b, db := newTestBackend(t)
	require.NoError(t, b.StartMission(testMission()))

	require.NoError(t, b.RecordVehicleState(&core.VehicleState{Tick: 1, Position: core.Position2D{X: 180, Y: 300}}))
	require.NoError(t, b.RecordStatusEvent(&core.StatusEvent{Tick: 1, Kind: "takeoff", Detail: "Takeoff"}))
	require.NoError(t, b.RecordCommandEvent(&core.CommandEvent{Tick: 1, Kind: "TAKEOFF", Command: "TAKEOFF", Phase: "started"}))

	states, statuses, commands := b.QueueLengths()
	assert.Equal(t, 1, states)
	assert.Equal(t, 1, statuses)
	assert.Equal(t, 1, commands)

	var count int64
	require.NoError(t, db.Model(&model.VehicleState{}).Count(&count).Error)
	assert.Zero(t, count)

	require.NoError(t, b.Flush())

	states, statuses, commands = b.QueueLengths()
	assert.Zero(t, states+statuses+commands)

	require.NoError(t, db.Model(&model.VehicleState{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	require.NoError(t, db.Model(&model.StatusEvent{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	require.NoError(t, db.Model(&model.CommandEvent{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	require.NoError(t, db.Model(&model.RecorderPerformance{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	var state model.VehicleState
	require.NoError(t, db.First(&state).Error)
	assert.Equal(t, b.MissionID(), state.MissionID)
	assert.Equal(t, 180.0, state.PixelX)
}

func TestFlush_Empty(t *testing.T) {
	b, db := newTestBackend(t)
	require.NoError(t, b.StartMission(testMission()))
	require.NoError(t, b.Flush())

	var count int64
	require.NoError(t, db.Model(&model.RecorderPerformance{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEndMission_WritesTrack(t *testing.T) {
	b, db := newTestBackend(t)
	m := testMission()
	require.NoError(t, b.StartMission(m))

	for i, x := range []float64{180, 180, 280} {
		require.NoError(t, b.RecordVehicleState(&core.VehicleState{
			Tick:     uint64(i + 1),
			Position: core.Position2D{X: x, Y: 300},
		}))
	}
	require.NoError(t, b.RecordCommandEvent(&core.CommandEvent{Kind: "MOVE", Command: "MOVE 100", Phase: "started"}))
	require.NoError(t, b.RecordCommandEvent(&core.CommandEvent{Kind: "MOVE", Command: "MOVE 100", Phase: "completed"}))

	require.NoError(t, b.EndMission())
	assert.Zero(t, b.MissionID())

	var stored model.Mission
	require.NoError(t, db.First(&stored, m.ID).Error)
	assert.True(t, stored.EndTime.Valid)
	assert.InDelta(t, 50.0, stored.DistanceMeters, 1e-6)
	assert.Equal(t, uint(1), stored.CommandCount)

	var count int64
	require.NoError(t, db.Model(&model.VehicleState{}).Where("mission_id = ?", m.ID).Count(&count).Error)
	assert.Equal(t, int64(3), count)

	// recording after the end is rejected
	assert.ErrorIs(t, b.RecordVehicleState(&core.VehicleState{}), ErrNoMission)
}

func TestClose_FlushesPending(t *testing.T) {
	db := newTestDB(t)
	b := New(Dependencies{DB: db, FlushInterval: time.Hour})
	require.NoError(t, b.Init())
	require.NoError(t, b.StartMission(testMission()))
	require.NoError(t, b.RecordStatusEvent(&core.StatusEvent{Kind: "ready"}))

	require.NoError(t, b.Close())
	// closing twice is safe
	require.NoError(t, b.Close())

	var count int64
	require.NoError(t, db.Model(&model.StatusEvent{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestWriterLoop_FlushesPeriodically(t *testing.T) {
	db := newTestDB(t)
	b := New(Dependencies{DB: db, FlushInterval: 10 * time.Millisecond})
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })

	require.NoError(t, b.StartMission(testMission()))
	require.NoError(t, b.RecordStatusEvent(&core.StatusEvent{Kind: "ready"}))

	assert.Eventually(t, func() bool {
		_, statuses, _ := b.QueueLengths()
		return statuses == 0
	}, 2*time.Second, 10*time.Millisecond)
}
