package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/OCAP2/dronesim/pkg/core"
)

// BucketPerformance holds recorder throughput points.
const BucketPerformance = "recorder_performance"

// Measurement names.
const (
	MeasurementState   = "drone_state"
	MeasurementStatus  = "status_event"
	MeasurementCommand = "command_event"
	MeasurementWriter  = "writer"
)

// ErrDisabled is returned by Connect when influx.enabled is false.
var ErrDisabled = errors.New("influx.enabled is false")

// Manager handles InfluxDB connections and writes.
type Manager struct {
	Client       influxdb2.Client
	Writers      map[string]influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	IsValid      bool
	BucketNames  []string
	Logger       zerolog.Logger
	BackupPath   string

	mu         sync.Mutex
	backupFile *os.File
}

// NewManager creates a new InfluxDB manager writing to the configured
// telemetry bucket and the performance bucket.
func NewManager(log zerolog.Logger, backupPath string) *Manager {
	return &Manager{
		Writers:     make(map[string]influxdb2_api.WriteAPI),
		IsValid:     false,
		BucketNames: []string{TelemetryBucket(), BucketPerformance},
		Logger:      log,
		BackupPath:  backupPath,
	}
}

// TelemetryBucket returns the configured bucket for flight telemetry.
func TelemetryBucket() string {
	if b := viper.GetString("influx.bucket"); b != "" {
		return b
	}
	return "telemetry"
}

// Connect establishes a connection to InfluxDB. If the server is unreachable
// points are written as line protocol to a gzip backup file instead.
func (m *Manager) Connect(ctx context.Context) error {
	if !viper.GetBool("influx.enabled") {
		return ErrDisabled
	}

	m.Client = influxdb2.NewClientWithOptions(
		fmt.Sprintf(
			"%s://%s:%s",
			viper.GetString("influx.protocol"),
			viper.GetString("influx.host"),
			viper.GetString("influx.port"),
		),
		viper.GetString("influx.token"),
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	// validate client connection health
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	running, err := m.Client.Ping(pingCtx)
	cancel()

	if err != nil || !running {
		m.IsValid = false
		m.Logger.Info().Str("backupPath", m.BackupPath).
			Msg("Failed to initialize InfluxDB client, writing to backup file")
		if err := m.openBackup(); err != nil {
			return err
		}
		m.Logger.Warn().Msg("InfluxDB client failed to initialize, using backup writer")
		return nil
	}

	m.IsValid = true
	if err := m.setupOrganizationAndBuckets(ctx); err != nil {
		return err
	}
	m.CreateWriters()
	m.Logger.Info().Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BackupWriter != nil {
		return nil
	}
	file, err := os.OpenFile(m.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.backupFile = file
	m.BackupWriter = gzip.NewWriter(file)
	return nil
}

func (m *Manager) setupOrganizationAndBuckets(ctx context.Context) error {
	orgName := viper.GetString("influx.org")

	// ensure org exists
	influxOrg, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		influxOrg, err = m.Client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			m.Logger.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return err
		}
	}

	// ensure buckets exist with 90 day retention
	for _, bucket := range m.BucketNames {
		if _, err = m.Client.BucketsAPI().FindBucketByName(ctx, bucket); err == nil {
			continue
		}
		m.Logger.Info().Str("bucket", bucket).Msg("Bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, influxOrg, bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: 60 * 60 * 24 * 90, // 90 days
		})
		if err != nil {
			m.Logger.Error().Err(err).Str("bucket", bucket).Msg("Error creating bucket")
			return err
		}
	}

	return nil
}

// CreateWriters creates write APIs for all configured buckets.
func (m *Manager) CreateWriters() {
	orgName := viper.GetString("influx.org")
	for _, bucket := range m.BucketNames {
		m.Logger.Trace().Str("bucket", bucket).Msg("Creating InfluxDB writer")
		m.Writers[bucket] = m.Client.WriteAPI(orgName, bucket)

		errorsCh := m.Writers[bucket].Errors()
		go func(bucketName string, errorsCh <-chan error) {
			for writeErr := range errorsCh {
				m.Logger.Error().Err(writeErr).Str("bucket", bucketName).
					Msg("Error sending data to InfluxDB")
			}
		}(bucket, errorsCh)
	}

	m.Logger.Debug().Msg("InfluxDB writers initialized")
}

// WritePoint writes a point to InfluxDB or backup file.
func (m *Manager) WritePoint(bucket string, point *influxdb2_write.Point) error {
	if m.IsValid {
		w, ok := m.Writers[bucket]
		if !ok {
			return fmt.Errorf("influxDB bucket '%s' not registered", bucket)
		}
		w.WritePoint(point)
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BackupWriter == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}

	// PointToLineProtocol terminates the line itself
	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := m.BackupWriter.Write([]byte(lineProtocol)); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// Close flushes pending writes and closes the client or backup file.
func (m *Manager) Close() error {
	for _, w := range m.Writers {
		w.Flush()
	}
	if m.Client != nil {
		m.Client.Close()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BackupWriter == nil {
		return nil
	}
	err := m.BackupWriter.Close()
	if cerr := m.backupFile.Close(); err == nil {
		err = cerr
	}
	m.BackupWriter = nil
	return err
}

// StatePoint builds a telemetry point from one tick of vehicle state.
func StatePoint(missionUUID string, s core.VehicleState) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(
		MeasurementState,
		map[string]string{
			"mission":  missionUUID,
			"flying":   strconv.FormatBool(s.Flying),
			"runState": s.RunState,
		},
		map[string]interface{}{
			"tick":     int64(s.Tick),
			"x":        s.Position.X,
			"y":        s.Position.Y,
			"lon":      s.Geo.Longitude,
			"lat":      s.Geo.Latitude,
			"heading":  s.Heading,
			"speed":    s.Speed,
			"altitude": s.Altitude,
			"battery":  s.Battery,
			"queueLen": s.QueueLen,
		},
		s.Time,
	)
}

// StatusPoint builds a point from a status event.
func StatusPoint(missionUUID string, e core.StatusEvent) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(
		MeasurementStatus,
		map[string]string{"mission": missionUUID, "kind": e.Kind},
		map[string]interface{}{"tick": int64(e.Tick), "detail": e.Detail},
		e.Time,
	)
}

// CommandPoint builds a point from a command lifecycle event.
func CommandPoint(missionUUID string, e core.CommandEvent) *influxdb2_write.Point {
	point := influxdb2_write.NewPoint(
		MeasurementCommand,
		map[string]string{"mission": missionUUID, "kind": e.Kind, "phase": e.Phase},
		map[string]interface{}{"tick": int64(e.Tick), "command": e.Command},
		e.Time,
	)
	if e.Outcome != "" {
		point.AddTag("outcome", e.Outcome)
	}
	return point
}

// WriterPoint records one flush of the telemetry worker.
func WriterPoint(missionUUID string, records int, took time.Duration, at time.Time) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(
		MeasurementWriter,
		map[string]string{"mission": missionUUID},
		map[string]interface{}{"records": records, "durationMs": float64(took.Microseconds()) / 1000},
		at,
	)
}
