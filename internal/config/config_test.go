package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"sim": { "tag": "Demo", "autorun": true },
		"storage": { "postgres": { "host": "10.0.0.1", "port": "5433" } }
	}`)

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, "Demo", viper.GetString("sim.tag"))
	assert.True(t, viper.GetBool("sim.autorun"))
	assert.Equal(t, "10.0.0.1", viper.GetString("storage.postgres.host"))
	assert.Equal(t, "5433", viper.GetString("storage.postgres.port"))
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load(writeConfig(t, `{}`))
	require.NoError(t, err)

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./dronelogs", viper.GetString("logsDir"))
	assert.Equal(t, "http://localhost:5000", viper.GetString("api.serverUrl"))
	assert.Equal(t, "", viper.GetString("api.apiKey"))
	assert.Equal(t, false, viper.GetBool("graylog.enabled"))
	assert.Equal(t, "localhost:12201", viper.GetString("graylog.address"))
	assert.Equal(t, false, viper.GetBool("influx.enabled"))
	assert.Equal(t, "telemetry", viper.GetString("influx.bucket"))
	assert.Equal(t, "memory", viper.GetString("storage.type"))
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "memory", viper.GetString("storage.type"))
}

func TestLoad_Malformed(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load(writeConfig(t, `{ "logLevel": `))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestGetString(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	assert.Equal(t, "testValue", GetString("testKey"))
}

func TestGetInt(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testInt", 42)
	assert.Equal(t, 42, GetInt("testInt"))
}

func TestGetBool(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testBool", true)
	assert.Equal(t, true, GetBool("testBool"))
}

func TestGetSimConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(t.TempDir()))

	cfg := GetSimConfig()
	assert.Equal(t, 16*time.Millisecond, cfg.TickInterval)
	assert.False(t, cfg.Autorun)
	assert.Equal(t, "Drone Mission", cfg.MissionName)
	assert.Equal(t, "Sim", cfg.Tag)
	assert.Equal(t, 100*time.Millisecond, cfg.RecordInterval)
	assert.Equal(t, 50*time.Millisecond, cfg.SnapshotInterval)
}

func TestGetArenaConfig(t *testing.T) {
	t.Run("defaults leave obstacles unset", func(t *testing.T) {
		t.Cleanup(viper.Reset)
		require.NoError(t, Load(t.TempDir()))

		cfg, err := GetArenaConfig()
		require.NoError(t, err)
		assert.Equal(t, 980.0, cfg.Width)
		assert.Equal(t, 640.0, cfg.Height)
		assert.Equal(t, 20.0, cfg.Pad)
		assert.Equal(t, 10.0, cfg.Margin)
		assert.Equal(t, 12.0, cfg.CollisionRadius)
		assert.Nil(t, cfg.Obstacles)
	})

	t.Run("obstacles from file", func(t *testing.T) {
		t.Cleanup(viper.Reset)
		require.NoError(t, Load(writeConfig(t, `{
			"arena": {
				"width": 500,
				"obstacles": [
					{ "x1": 100, "y1": 100, "x2": 200, "y2": 150 },
					{ "x1": 300, "y1": 50, "x2": 320, "y2": 400 }
				]
			}
		}`)))

		cfg, err := GetArenaConfig()
		require.NoError(t, err)
		assert.Equal(t, 500.0, cfg.Width)
		assert.Equal(t, []ObstacleConfig{
			{X1: 100, Y1: 100, X2: 200, Y2: 150},
			{X1: 300, Y1: 50, X2: 320, Y2: 400},
		}, cfg.Obstacles)
	})
}

func TestGetVehicleConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{ "vehicle": { "speed": 200 } }`)))

	cfg := GetVehicleConfig()
	assert.Equal(t, 180.0, cfg.HomeX)
	assert.Equal(t, 300.0, cfg.HomeY)
	assert.Equal(t, 200.0, cfg.Speed)
	assert.Equal(t, 120.0, cfg.TurnSpeed)
}

func TestGetStorageConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(t.TempDir()))

	cfg := GetStorageConfig()
	assert.Equal(t, "memory", cfg.Type)
	assert.Equal(t, "./recordings", cfg.Memory.OutputDir)
	assert.Equal(t, true, cfg.Memory.CompressOutput)
	assert.Equal(t, 3*time.Minute, cfg.SQLite.DumpInterval)
	assert.Equal(t, "dronesim", cfg.Postgres.Database)
	assert.Equal(t, 10*time.Second, cfg.WebSocket.AckTimeout)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, byte(0), cfg.MQTT.QoS)
}

func TestGetStorageConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"storage": {
			"type": "mqtt",
			"memory": { "outputDir": "/tmp/out", "compressOutput": false },
			"sqlite": { "dumpInterval": "10m" },
			"mqtt": { "broker": "tcp://broker:1883", "topicPrefix": "fleet/7", "qos": 1 }
		}
	}`)
	require.NoError(t, Load(dir))

	sc := GetStorageConfig()
	assert.Equal(t, "mqtt", sc.Type)
	assert.Equal(t, "/tmp/out", sc.Memory.OutputDir)
	assert.Equal(t, false, sc.Memory.CompressOutput)
	assert.Equal(t, 10*time.Minute, sc.SQLite.DumpInterval)
	assert.Equal(t, "tcp://broker:1883", sc.MQTT.Broker)
	assert.Equal(t, "fleet/7", sc.MQTT.TopicPrefix)
	assert.Equal(t, byte(1), sc.MQTT.QoS)
}

func TestGetOTelConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(t.TempDir()))

	cfg := GetOTelConfig()
	assert.Equal(t, false, cfg.Enabled)
	assert.Equal(t, "dronesim", cfg.ServiceName)
	assert.Equal(t, 15*time.Second, cfg.ExportInterval)
	assert.Equal(t, "", cfg.MetricsFile)
	assert.Equal(t, 5*time.Second, cfg.BatchTimeout)
	assert.Empty(t, cfg.Endpoint)
}

func TestGetOTelConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"otel": {
			"enabled": true,
			"serviceName": "my-service",
			"exportInterval": "30s",
			"metricsFile": "metrics.jsonl",
			"endpoint": "collector:4318",
			"insecure": true
		}
	}`)
	require.NoError(t, Load(dir))

	oc := GetOTelConfig()
	assert.Equal(t, true, oc.Enabled)
	assert.Equal(t, "my-service", oc.ServiceName)
	assert.Equal(t, 30*time.Second, oc.ExportInterval)
	assert.Equal(t, "metrics.jsonl", oc.MetricsFile)
	assert.Equal(t, "collector:4318", oc.Endpoint)
	assert.True(t, oc.Insecure)
}

func TestGetGeoSerialHTTPMonitor_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(t.TempDir()))

	geo := GetGeoConfig()
	assert.Equal(t, 10.0, geo.OriginLon)
	assert.Equal(t, 56.0, geo.OriginLat)
	assert.Equal(t, 0.5, geo.MetersPerPixel)

	ser := GetSerialConfig()
	assert.False(t, ser.Enabled)
	assert.Equal(t, 4800, ser.BaudRate)
	assert.Equal(t, time.Second, ser.Interval)

	h := GetHTTPConfig()
	assert.True(t, h.Enabled)
	assert.Equal(t, "127.0.0.1:8080", h.Address)

	mon := GetMonitorConfig()
	assert.True(t, mon.Enabled)
	assert.Equal(t, "status.txt", mon.File)
	assert.Equal(t, 5*time.Second, mon.Interval)
}
