// Package postgres implements the storage.Backend interface on PostgreSQL/PostGIS.
// When Postgres is unreachable at start-up it falls back to an in-memory SQLite
// database that is dumped to disk whenever a mission ends.
package postgres

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/OCAP2/dronesim/internal/config"
	"github.com/OCAP2/dronesim/internal/database"
	"github.com/OCAP2/dronesim/internal/geo"
	gormstorage "github.com/OCAP2/dronesim/internal/storage/gorm"
	"github.com/OCAP2/dronesim/pkg/core"

	"github.com/rs/zerolog"
)

// Config holds configuration for the Postgres storage backend.
type Config struct {
	Postgres    config.PostgresConfig
	FallbackDir string // where local dumps go when Postgres is unavailable
}

// Backend wraps the GORM backend with Postgres connection management.
type Backend struct {
	*gormstorage.Backend
	mgr *database.Manager
	cfg Config
	log *slog.Logger

	mu      sync.Mutex
	mission *core.Mission
}

// New connects to Postgres (or the SQLite fallback) and migrates the schema.
func New(cfg Config, proj *geo.Projector, logger *slog.Logger, dbLog zerolog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}

	mgr := database.NewManager(dbLog)
	if err := mgr.Connect(cfg.Postgres); err != nil {
		return nil, err
	}
	if err := mgr.Setup(); err != nil {
		_ = mgr.Close()
		return nil, err
	}
	if mgr.ShouldSaveLocal {
		logger.Warn("Postgres unavailable, recording to local SQLite", "dir", cfg.FallbackDir)
	}

	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{
			DB:        mgr.DB,
			Projector: proj,
			Logger:    logger,
		}),
		mgr: mgr,
		cfg: cfg,
		log: logger,
	}, nil
}

// Fallback reports whether the backend is recording to local SQLite.
func (b *Backend) Fallback() bool {
	return b.mgr.ShouldSaveLocal
}

// Init starts the DB writer. The fallback dump directory is created if needed.
func (b *Backend) Init() error {
	if b.Fallback() && b.cfg.FallbackDir != "" {
		if err := os.MkdirAll(b.cfg.FallbackDir, 0755); err != nil {
			return fmt.Errorf("failed to create fallback directory: %w", err)
		}
	}
	return b.Backend.Init()
}

// Close stops the writer and closes the connection pool.
func (b *Backend) Close() error {
	err := b.Backend.Close()
	if cerr := b.mgr.Close(); err == nil {
		err = cerr
	}
	return err
}

// StartMission inserts the mission row.
func (b *Backend) StartMission(mission *core.Mission) error {
	if err := b.Backend.StartMission(mission); err != nil {
		return err
	}
	b.mu.Lock()
	b.mission = mission
	if b.Fallback() && b.cfg.FallbackDir != "" {
		name := strings.NewReplacer(" ", "_", ":", "_", string(filepath.Separator), "_").Replace(mission.MissionName)
		b.mgr.SqliteFilePath = filepath.Join(b.cfg.FallbackDir,
			fmt.Sprintf("%s_%s.db", name, mission.StartTime.Format("20060102_150405")))
	}
	b.mu.Unlock()
	return nil
}

// EndMission finalizes the mission. On the SQLite fallback the database is
// dumped to disk so it can be imported later.
func (b *Backend) EndMission() error {
	if err := b.Backend.EndMission(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.Fallback() || b.mgr.SqliteFilePath == "" {
		return nil
	}
	if err := b.mgr.DumpMemoryToDisk(); err != nil {
		return err
	}
	b.log.Info("Saved fallback recording", "path", b.mgr.SqliteFilePath)
	return nil
}

// GetExportedFilePath returns the fallback dump, if any. Recordings that
// reached Postgres have nothing to upload.
func (b *Backend) GetExportedFilePath() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.Fallback() {
		return ""
	}
	return b.mgr.SqliteFilePath
}

// GetExportMetadata describes the fallback dump for upload.
func (b *Backend) GetExportMetadata() core.UploadMetadata {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mission == nil {
		return core.UploadMetadata{}
	}
	return core.UploadMetadata{
		MissionName: b.mission.MissionName,
		Author:      b.mission.Author,
		Tag:         b.mission.Tag,
	}
}
