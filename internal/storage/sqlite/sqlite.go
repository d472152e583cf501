// Package sqlitestorage implements the storage.Backend interface using an in-memory
// SQLite database with periodic disk dumps via VACUUM INTO.
// It wraps the GORM backend via composition. The only SQLite-specific concerns are
// creating the in-memory DB and dumping it to disk, periodically and when a mission ends.
package sqlitestorage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/OCAP2/dronesim/internal/database"
	"github.com/OCAP2/dronesim/internal/geo"
	gormstorage "github.com/OCAP2/dronesim/internal/storage/gorm"
	"github.com/OCAP2/dronesim/pkg/core"

	"gorm.io/gorm"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	DumpInterval time.Duration
	OutputDir    string // Directory for VACUUM INTO dumps, one file per mission
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db       *gorm.DB
	cfg      Config
	log      *slog.Logger
	stopChan chan struct{}
	wg       sync.WaitGroup

	mu       sync.Mutex
	dumpPath string
	mission  *core.Mission
}

// New creates a new SQLite storage backend.
func New(cfg Config, proj *geo.Projector, logger *slog.Logger) (*Backend, error) {
	db, err := database.GetSqliteDB("")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	gormBackend := gormstorage.New(gormstorage.Dependencies{
		DB:        db,
		Projector: proj,
		Logger:    logger,
	})

	return &Backend{
		Backend:  gormBackend,
		db:       db,
		cfg:      cfg,
		log:      logger,
		stopChan: make(chan struct{}),
	}, nil
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}
	if b.cfg.OutputDir != "" {
		if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	if b.cfg.OutputDir != "" && b.cfg.DumpInterval > 0 {
		b.wg.Add(1)
		go b.dumpLoop()
	}

	return nil
}

// Close stops the dump goroutine, closes the embedded GORM backend and
// releases the in-memory database.
func (b *Backend) Close() error {
	close(b.stopChan)
	b.wg.Wait()
	err := b.Backend.Close()
	if sqlDB, dbErr := b.db.DB(); dbErr == nil {
		_ = sqlDB.Close()
	}
	return err
}

// StartMission records the mission and picks the dump file for it.
func (b *Backend) StartMission(mission *core.Mission) error {
	if err := b.Backend.StartMission(mission); err != nil {
		return err
	}
	b.mu.Lock()
	b.mission = mission
	if b.cfg.OutputDir != "" {
		b.dumpPath = filepath.Join(b.cfg.OutputDir, dumpFileName(mission))
	}
	b.mu.Unlock()
	return nil
}

// EndMission finalizes the mission and writes a last dump.
func (b *Backend) EndMission() error {
	if err := b.Backend.EndMission(); err != nil {
		return err
	}
	return b.Dump()
}

// Dump writes the in-memory database to the current dump file.
func (b *Backend) Dump() error {
	b.mu.Lock()
	path := b.dumpPath
	b.mu.Unlock()
	if path == "" {
		return nil
	}

	// flush first so the dump includes everything recorded so far
	if b.MissionID() != 0 {
		if err := b.Flush(); err != nil {
			return err
		}
	}

	start := time.Now()
	if err := database.DumpMemoryDBToDisk(b.db, path); err != nil {
		return err
	}
	b.log.Debug("Dumped SQLite DB to disk", "path", path, "duration", time.Since(start))
	return nil
}

// GetExportedFilePath returns the latest dump file.
func (b *Backend) GetExportedFilePath() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dumpPath
}

// GetExportMetadata describes the dump for upload.
func (b *Backend) GetExportMetadata() core.UploadMetadata {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mission == nil {
		return core.UploadMetadata{}
	}
	return core.UploadMetadata{
		MissionName:     b.mission.MissionName,
		Author:          b.mission.Author,
		Tag:             b.mission.Tag,
		MissionDuration: time.Since(b.mission.StartTime).Seconds(),
	}
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Dump(); err != nil {
				b.log.Error("Error dumping to disk", "error", err)
			}
		}
	}
}

func dumpFileName(m *core.Mission) string {
	name := strings.NewReplacer(" ", "_", ":", "_", string(filepath.Separator), "_").Replace(m.MissionName)
	return fmt.Sprintf("%s_%s.db", name, m.StartTime.Format("20060102_150405"))
}
