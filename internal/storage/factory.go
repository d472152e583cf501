package storage

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/rs/zerolog"

	"github.com/OCAP2/dronesim/internal/config"
	"github.com/OCAP2/dronesim/internal/geo"
	gormstorage "github.com/OCAP2/dronesim/internal/storage/gorm"
	"github.com/OCAP2/dronesim/internal/storage/memory"
	mqttstorage "github.com/OCAP2/dronesim/internal/storage/mqtt"
	"github.com/OCAP2/dronesim/internal/storage/postgres"
	sqlitestorage "github.com/OCAP2/dronesim/internal/storage/sqlite"
	"github.com/OCAP2/dronesim/internal/storage/websocket"
)

// ErrUnknownBackend is returned for an unsupported storage.type.
var ErrUnknownBackend = errors.New("unknown storage type")

// Options carries what backends share besides their own config.
type Options struct {
	Projector *geo.Projector
	Logger    *slog.Logger
	DBLogger  zerolog.Logger
}

// NewBackend creates a storage backend based on configuration
func NewBackend(cfg config.StorageConfig, opts Options) (Backend, error) {
	switch cfg.Type {
	case "memory", "":
		return memory.New(cfg.Memory, opts.Projector), nil
	case "sqlite":
		return sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: cfg.SQLite.DumpInterval,
			OutputDir:    cfg.SQLite.OutputDir,
		}, opts.Projector, opts.Logger)
	case "postgres":
		return postgres.New(postgres.Config{
			Postgres:    cfg.Postgres,
			FallbackDir: cfg.SQLite.OutputDir,
		}, opts.Projector, opts.Logger, opts.DBLogger)
	case "websocket":
		return websocket.New(websocket.Config{
			URL:        cfg.WebSocket.URL,
			Secret:     cfg.WebSocket.Secret,
			AckTimeout: cfg.WebSocket.AckTimeout,
		}, opts.Logger), nil
	case "mqtt":
		return mqttstorage.New(mqttstorage.Config{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			QoS:         cfg.MQTT.QoS,
			Timeout:     cfg.MQTT.Timeout,
		}, opts.Logger), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Type)
	}
}

// Compile-time interface checks
var (
	_ Backend    = (*memory.Backend)(nil)
	_ Uploadable = (*memory.Backend)(nil)
	_ Backend    = (*gormstorage.Backend)(nil)
	_ Flusher    = (*gormstorage.Backend)(nil)
	_ WriteTimer = (*gormstorage.Backend)(nil)
	_ Backend    = (*sqlitestorage.Backend)(nil)
	_ Uploadable = (*sqlitestorage.Backend)(nil)
	_ Backend    = (*postgres.Backend)(nil)
	_ Uploadable = (*postgres.Backend)(nil)
	_ Backend    = (*websocket.Backend)(nil)
	_ Backend    = (*mqttstorage.Backend)(nil)
)
