package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/pflag"
	"gorm.io/gorm"

	"github.com/OCAP2/dronesim/internal/config"
	"github.com/OCAP2/dronesim/internal/database"
	"github.com/OCAP2/dronesim/internal/geo"
	"github.com/OCAP2/dronesim/internal/model"
	"github.com/OCAP2/dronesim/internal/model/convert"
	"github.com/OCAP2/dronesim/internal/storage/memory"
)

// ErrMissionNotFound is returned when the export selector matches nothing.
var ErrMissionNotFound = errors.New("mission not found")

// runExport writes a recorded mission from a SQLite dump or the configured
// Postgres database as a JSON recording.
func runExport(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet(appName+" export", pflag.ContinueOnError)
	configDir := fs.String("config", ".", "directory containing "+config.FileName)
	dbPath := fs.String("db", "", "SQLite file to read; Postgres from the config when empty")
	missionID := fs.Uint("mission", 0, "mission ID; the latest mission when 0")
	missionUUID := fs.String("uuid", "", "mission UUID, instead of --mission")
	outDir := fs.String("out", ".", "output directory")
	compress := fs.Bool("gzip", true, "gzip the JSON output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := config.Load(*configDir); err != nil {
		return err
	}

	var db *gorm.DB
	var err error
	if *dbPath != "" {
		db, err = database.GetSqliteDB(*dbPath)
	} else {
		db, err = database.GetPostgresDB(config.GetStorageConfig().Postgres)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	db = db.WithContext(ctx)

	path, err := exportMission(db, missionSelector{ID: *missionID, UUID: *missionUUID}, config.MemoryConfig{
		OutputDir:      *outDir,
		CompressOutput: *compress,
	})
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

type missionSelector struct {
	ID   uint
	UUID string
}

// exportMission loads one mission with its states and events and replays it
// through the memory backend, which writes the recording file.
func exportMission(db *gorm.DB, sel missionSelector, out config.MemoryConfig) (string, error) {
	var m model.Mission
	q := db.Model(&model.Mission{})
	switch {
	case sel.UUID != "":
		q = q.Where("uuid = ?", sel.UUID)
	case sel.ID != 0:
		q = q.Where("id = ?", sel.ID)
	default:
		q = q.Order("id DESC")
	}
	if err := q.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrMissionNotFound
		}
		return "", fmt.Errorf("error getting mission: %w", err)
	}

	var states []model.VehicleState
	if err := db.Where("mission_id = ?", m.ID).Order("tick, id").Find(&states).Error; err != nil {
		return "", fmt.Errorf("error getting vehicle states: %w", err)
	}
	var statuses []model.StatusEvent
	if err := db.Where("mission_id = ?", m.ID).Order("tick, id").Find(&statuses).Error; err != nil {
		return "", fmt.Errorf("error getting status events: %w", err)
	}
	var commands []model.CommandEvent
	if err := db.Where("mission_id = ?", m.ID).Order("tick, id").Find(&commands).Error; err != nil {
		return "", fmt.Errorf("error getting command events: %w", err)
	}

	mission := convert.MissionToCore(m)
	var proj *geo.Projector
	if mission.MetersPerPixel > 0 {
		p, err := geo.NewProjector(mission.OriginLongitude, mission.OriginLatitude, mission.MetersPerPixel)
		if err == nil {
			proj = p
		}
	}

	backend := memory.New(out, proj)
	if err := backend.StartMission(&mission); err != nil {
		return "", err
	}
	for _, s := range states {
		st := convert.VehicleStateToCore(s)
		_ = backend.RecordVehicleState(&st)
	}
	for _, e := range statuses {
		ev := convert.StatusEventToCore(e)
		_ = backend.RecordStatusEvent(&ev)
	}
	for _, e := range commands {
		ev := convert.CommandEventToCore(e)
		_ = backend.RecordCommandEvent(&ev)
	}
	if err := backend.EndMission(); err != nil {
		return "", err
	}
	return backend.GetExportedFilePath(), nil
}

