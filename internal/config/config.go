package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the configuration file looked up in the config directory.
const FileName = "dronesim.cfg.json"

// SimConfig holds loop settings.
type SimConfig struct {
	TickInterval time.Duration `json:"tickInterval" mapstructure:"tickInterval"`
	Autorun      bool          `json:"autorun" mapstructure:"autorun"`
	ScriptFile   string        `json:"scriptFile" mapstructure:"scriptFile"`
	MissionName  string        `json:"missionName" mapstructure:"missionName"`
	Author       string        `json:"author" mapstructure:"author"`
	Tag          string        `json:"tag" mapstructure:"tag"`

	// RecordInterval spaces the vehicle states handed to storage.
	RecordInterval time.Duration `json:"recordInterval" mapstructure:"recordInterval"`

	// SnapshotInterval throttles the live feed.
	SnapshotInterval time.Duration `json:"snapshotInterval" mapstructure:"snapshotInterval"`
}

// ObstacleConfig is one rectangle in arena pixels.
type ObstacleConfig struct {
	X1 float64 `json:"x1" mapstructure:"x1"`
	Y1 float64 `json:"y1" mapstructure:"y1"`
	X2 float64 `json:"x2" mapstructure:"x2"`
	Y2 float64 `json:"y2" mapstructure:"y2"`
}

// ArenaConfig describes the flying area. Obstacles is nil when the config
// file does not list any, meaning the stock layout.
type ArenaConfig struct {
	Width           float64          `json:"width" mapstructure:"width"`
	Height          float64          `json:"height" mapstructure:"height"`
	Pad             float64          `json:"pad" mapstructure:"pad"`
	Margin          float64          `json:"margin" mapstructure:"margin"`
	CollisionRadius float64          `json:"collisionRadius" mapstructure:"collisionRadius"`
	Obstacles       []ObstacleConfig `json:"obstacles" mapstructure:"obstacles"`
}

// VehicleConfig holds the drone's starting parameters.
type VehicleConfig struct {
	HomeX     float64 `json:"homeX" mapstructure:"homeX"`
	HomeY     float64 `json:"homeY" mapstructure:"homeY"`
	Speed     float64 `json:"speed" mapstructure:"speed"`
	TurnSpeed float64 `json:"turnSpeed" mapstructure:"turnSpeed"`
}

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds SQLite storage backend settings
type SQLiteConfig struct {
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
	OutputDir    string        `json:"outputDir" mapstructure:"outputDir"`
}

// PostgresConfig holds connection settings for the postgres backend.
type PostgresConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
	SSLMode  string `json:"sslmode" mapstructure:"sslmode"`
}

// WebSocketConfig holds settings for streaming to a remote recorder.
type WebSocketConfig struct {
	URL        string        `json:"url" mapstructure:"url"`
	Secret     string        `json:"secret" mapstructure:"secret"`
	AckTimeout time.Duration `json:"ackTimeout" mapstructure:"ackTimeout"`
}

// MQTTConfig holds broker settings for the MQTT backend.
type MQTTConfig struct {
	Broker      string        `json:"broker" mapstructure:"broker"`
	ClientID    string        `json:"clientId" mapstructure:"clientId"`
	TopicPrefix string        `json:"topicPrefix" mapstructure:"topicPrefix"`
	QoS         byte          `json:"qos" mapstructure:"qos"`
	Timeout     time.Duration `json:"timeout" mapstructure:"timeout"`
}

// StorageConfig selects and configures the storage backend
type StorageConfig struct {
	Type      string          `json:"type" mapstructure:"type"`
	Memory    MemoryConfig    `json:"memory" mapstructure:"memory"`
	SQLite    SQLiteConfig    `json:"sqlite" mapstructure:"sqlite"`
	Postgres  PostgresConfig  `json:"postgres" mapstructure:"postgres"`
	WebSocket WebSocketConfig `json:"websocket" mapstructure:"websocket"`
	MQTT      MQTTConfig      `json:"mqtt" mapstructure:"mqtt"`
}

// OTelConfig holds OpenTelemetry metrics settings
type OTelConfig struct {
	Enabled        bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName    string        `json:"serviceName" mapstructure:"serviceName"`
	ExportInterval time.Duration `json:"exportInterval" mapstructure:"exportInterval"`
	MetricsFile    string        `json:"metricsFile" mapstructure:"metricsFile"`
	LogsFile       string        `json:"logsFile" mapstructure:"logsFile"`
	BatchTimeout   time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint       string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure       bool          `json:"insecure" mapstructure:"insecure"`
}

// GeoConfig anchors the arena to the real world.
type GeoConfig struct {
	OriginLon      float64 `json:"originLon" mapstructure:"originLon"`
	OriginLat      float64 `json:"originLat" mapstructure:"originLat"`
	MetersPerPixel float64 `json:"metersPerPixel" mapstructure:"metersPerPixel"`
}

// SerialConfig controls NMEA output on a serial port.
type SerialConfig struct {
	Enabled  bool          `json:"enabled" mapstructure:"enabled"`
	Port     string        `json:"port" mapstructure:"port"`
	BaudRate int           `json:"baudRate" mapstructure:"baudRate"`
	Interval time.Duration `json:"interval" mapstructure:"interval"`
}

// HTTPConfig controls the control API.
type HTTPConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// MonitorConfig controls the periodic status file.
type MonitorConfig struct {
	Enabled  bool          `json:"enabled" mapstructure:"enabled"`
	File     string        `json:"file" mapstructure:"file"`
	Interval time.Duration `json:"interval" mapstructure:"interval"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file. A missing file is
// not an error; the defaults apply.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./dronelogs")

	viper.SetDefault("sim.tickInterval", "16ms")
	viper.SetDefault("sim.autorun", false)
	viper.SetDefault("sim.scriptFile", "")
	viper.SetDefault("sim.missionName", "Drone Mission")
	viper.SetDefault("sim.author", "")
	viper.SetDefault("sim.tag", "Sim")
	viper.SetDefault("sim.recordInterval", "100ms")
	viper.SetDefault("sim.snapshotInterval", "50ms")

	viper.SetDefault("arena.width", 980.0)
	viper.SetDefault("arena.height", 640.0)
	viper.SetDefault("arena.pad", 20.0)
	viper.SetDefault("arena.margin", 10.0)
	viper.SetDefault("arena.collisionRadius", 12.0)

	viper.SetDefault("vehicle.homeX", 180.0)
	viper.SetDefault("vehicle.homeY", 300.0)
	viper.SetDefault("vehicle.speed", 120.0)
	viper.SetDefault("vehicle.turnSpeed", 120.0)

	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")
	viper.SetDefault("api.upload", false)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./recordings")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.sqlite.outputDir", "./recordings")
	viper.SetDefault("storage.postgres.host", "localhost")
	viper.SetDefault("storage.postgres.port", "5432")
	viper.SetDefault("storage.postgres.username", "postgres")
	viper.SetDefault("storage.postgres.password", "postgres")
	viper.SetDefault("storage.postgres.database", "dronesim")
	viper.SetDefault("storage.postgres.sslmode", "disable")
	viper.SetDefault("storage.websocket.url", "ws://localhost:5000/api/v1/stream")
	viper.SetDefault("storage.websocket.secret", "")
	viper.SetDefault("storage.websocket.ackTimeout", "10s")
	viper.SetDefault("storage.mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("storage.mqtt.clientId", "dronesim")
	viper.SetDefault("storage.mqtt.topicPrefix", "dronesim")
	viper.SetDefault("storage.mqtt.qos", 0)
	viper.SetDefault("storage.mqtt.timeout", "5s")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "dronesim")
	viper.SetDefault("influx.bucket", "telemetry")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "dronesim")
	viper.SetDefault("otel.exportInterval", "15s")
	viper.SetDefault("otel.metricsFile", "")
	viper.SetDefault("otel.logsFile", "")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", false)

	viper.SetDefault("geo.originLon", 10.0)
	viper.SetDefault("geo.originLat", 56.0)
	viper.SetDefault("geo.metersPerPixel", 0.5)

	viper.SetDefault("serial.enabled", false)
	viper.SetDefault("serial.port", "/dev/ttyUSB0")
	viper.SetDefault("serial.baudRate", 4800)
	viper.SetDefault("serial.interval", "1s")

	viper.SetDefault("http.enabled", true)
	viper.SetDefault("http.address", "127.0.0.1:8080")

	viper.SetDefault("monitor.enabled", true)
	viper.SetDefault("monitor.file", "status.txt")
	viper.SetDefault("monitor.interval", "5s")

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetSimConfig returns the loop settings.
func GetSimConfig() SimConfig {
	return SimConfig{
		TickInterval: viper.GetDuration("sim.tickInterval"),
		Autorun:      viper.GetBool("sim.autorun"),
		ScriptFile:   viper.GetString("sim.scriptFile"),
		MissionName:  viper.GetString("sim.missionName"),
		Author:       viper.GetString("sim.author"),
		Tag:          viper.GetString("sim.tag"),

		RecordInterval:   viper.GetDuration("sim.recordInterval"),
		SnapshotInterval: viper.GetDuration("sim.snapshotInterval"),
	}
}

// GetArenaConfig returns the arena layout.
func GetArenaConfig() (ArenaConfig, error) {
	cfg := ArenaConfig{
		Width:           viper.GetFloat64("arena.width"),
		Height:          viper.GetFloat64("arena.height"),
		Pad:             viper.GetFloat64("arena.pad"),
		Margin:          viper.GetFloat64("arena.margin"),
		CollisionRadius: viper.GetFloat64("arena.collisionRadius"),
	}
	if viper.IsSet("arena.obstacles") {
		if err := viper.UnmarshalKey("arena.obstacles", &cfg.Obstacles); err != nil {
			return cfg, fmt.Errorf("decoding arena.obstacles: %w", err)
		}
		if cfg.Obstacles == nil {
			cfg.Obstacles = []ObstacleConfig{}
		}
	}
	return cfg, nil
}

// GetVehicleConfig returns the drone's starting parameters.
func GetVehicleConfig() VehicleConfig {
	return VehicleConfig{
		HomeX:     viper.GetFloat64("vehicle.homeX"),
		HomeY:     viper.GetFloat64("vehicle.homeY"),
		Speed:     viper.GetFloat64("vehicle.speed"),
		TurnSpeed: viper.GetFloat64("vehicle.turnSpeed"),
	}
}

// GetStorageConfig returns the storage backend configuration
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
			OutputDir:    viper.GetString("storage.sqlite.outputDir"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("storage.postgres.host"),
			Port:     viper.GetString("storage.postgres.port"),
			Username: viper.GetString("storage.postgres.username"),
			Password: viper.GetString("storage.postgres.password"),
			Database: viper.GetString("storage.postgres.database"),
			SSLMode:  viper.GetString("storage.postgres.sslmode"),
		},
		WebSocket: WebSocketConfig{
			URL:        viper.GetString("storage.websocket.url"),
			Secret:     viper.GetString("storage.websocket.secret"),
			AckTimeout: viper.GetDuration("storage.websocket.ackTimeout"),
		},
		MQTT: MQTTConfig{
			Broker:      viper.GetString("storage.mqtt.broker"),
			ClientID:    viper.GetString("storage.mqtt.clientId"),
			TopicPrefix: viper.GetString("storage.mqtt.topicPrefix"),
			QoS:         byte(viper.GetUint("storage.mqtt.qos")),
			Timeout:     viper.GetDuration("storage.mqtt.timeout"),
		},
	}
}

// GetOTelConfig returns the OpenTelemetry configuration
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:        viper.GetBool("otel.enabled"),
		ServiceName:    viper.GetString("otel.serviceName"),
		ExportInterval: viper.GetDuration("otel.exportInterval"),
		MetricsFile:    viper.GetString("otel.metricsFile"),
		LogsFile:       viper.GetString("otel.logsFile"),
		BatchTimeout:   viper.GetDuration("otel.batchTimeout"),
		Endpoint:       viper.GetString("otel.endpoint"),
		Insecure:       viper.GetBool("otel.insecure"),
	}
}

// GetGeoConfig returns the geographic anchor of the arena.
func GetGeoConfig() GeoConfig {
	return GeoConfig{
		OriginLon:      viper.GetFloat64("geo.originLon"),
		OriginLat:      viper.GetFloat64("geo.originLat"),
		MetersPerPixel: viper.GetFloat64("geo.metersPerPixel"),
	}
}

// GetSerialConfig returns the NMEA serial output settings.
func GetSerialConfig() SerialConfig {
	return SerialConfig{
		Enabled:  viper.GetBool("serial.enabled"),
		Port:     viper.GetString("serial.port"),
		BaudRate: viper.GetInt("serial.baudRate"),
		Interval: viper.GetDuration("serial.interval"),
	}
}

// GetHTTPConfig returns the control API settings.
func GetHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Enabled: viper.GetBool("http.enabled"),
		Address: viper.GetString("http.address"),
	}
}

// GetMonitorConfig returns the status file settings.
func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Enabled:  viper.GetBool("monitor.enabled"),
		File:     viper.GetString("monitor.file"),
		Interval: viper.GetDuration("monitor.interval"),
	}
}
