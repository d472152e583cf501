package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/OCAP2/dronesim/internal/api"
	"github.com/OCAP2/dronesim/internal/config"
	"github.com/OCAP2/dronesim/internal/dispatcher"
	"github.com/OCAP2/dronesim/internal/geo"
	"github.com/OCAP2/dronesim/internal/handlers"
	"github.com/OCAP2/dronesim/internal/influx"
	"github.com/OCAP2/dronesim/internal/logging"
	"github.com/OCAP2/dronesim/internal/mission"
	"github.com/OCAP2/dronesim/internal/monitor"
	"github.com/OCAP2/dronesim/internal/nmea"
	intOtel "github.com/OCAP2/dronesim/internal/otel"
	"github.com/OCAP2/dronesim/internal/script"
	"github.com/OCAP2/dronesim/internal/server"
	"github.com/OCAP2/dronesim/internal/sim"
	"github.com/OCAP2/dronesim/internal/storage"
	"github.com/OCAP2/dronesim/internal/vehicle"
	"github.com/OCAP2/dronesim/internal/worker"
	"github.com/OCAP2/dronesim/pkg/core"
)

// app holds everything wired together for one run.
type app struct {
	logger   *slog.Logger
	logs     *logging.Zerolog
	mission  *mission.Context
	template core.Mission
	backend  storage.Backend
	worker   *worker.Manager
	sim      *sim.Simulation

	// serialises mission rotation on reset against shutdown
	rotateMu sync.Mutex
}

func run(ctx context.Context, args []string) error {
	if err := loadConfig(args); err != nil {
		return err
	}
	sessionStart := time.Now()
	simCfg := config.GetSimConfig()

	// logging
	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}
	logFile, err := os.OpenFile(logging.SessionFile(logsDir, appName, "log", sessionStart), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer logFile.Close()

	a := &app{mission: mission.NewContext()}
	level := viper.GetString("logLevel")
	zlOpts := logging.ZerologOptions{
		Console: os.Stderr,
		File:    logFile,
		Level:   level,
		Fields:  map[string]any{"app": appName, "version": CurrentVersion},
	}
	if viper.GetBool("graylog.enabled") {
		zlOpts.GraylogAddress = viper.GetString("graylog.address")
	}
	a.logs, err = logging.NewZerolog(zlOpts)
	if err != nil {
		return err
	}
	defer a.logs.Close()

	// telemetry
	otelCfg := config.GetOTelConfig()
	var metricsFile *os.File
	if otelCfg.Enabled {
		path := otelCfg.MetricsFile
		if path == "" {
			path = logging.SessionFile(logsDir, appName, "metrics.json", sessionStart)
		}
		metricsFile, err = os.Create(path)
		if err != nil {
			return fmt.Errorf("creating metrics file: %w", err)
		}
		defer metricsFile.Close()
	}
	var otelLogFile *os.File
	if otelCfg.Enabled && otelCfg.LogsFile != "" {
		otelLogFile, err = os.OpenFile(filepath.Join(logsDir, otelCfg.LogsFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("opening OTel log file: %w", err)
		}
		defer otelLogFile.Close()
	}
	otelOpts := intOtel.Config{
		Enabled:        otelCfg.Enabled,
		ServiceName:    otelCfg.ServiceName,
		ServiceVersion: CurrentVersion,
		ExportInterval: otelCfg.ExportInterval,
		MetricWriter:   metricsFile,
		BatchTimeout:   otelCfg.BatchTimeout,
		Endpoint:       otelCfg.Endpoint,
		Insecure:       otelCfg.Insecure,
	}
	if otelLogFile != nil {
		otelOpts.LogWriter = otelLogFile
	}
	provider, err := intOtel.New(otelOpts)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			a.logs.Logger.Warn().Err(err).Msg("OTel shutdown failed")
		}
	}()

	slogManager := logging.NewSlogManager()
	var extra []slog.Handler
	if a.logs.Graylog != nil {
		extra = append(extra, slog.NewJSONHandler(a.logs.Graylog, nil))
	}
	if lp := provider.LoggerProvider(); lp != nil {
		extra = append(extra, logging.NewOTelHandler(appName, lp))
	}
	slogManager.Setup(logFile, level, func() []slog.Attr {
		return []slog.Attr{slog.String("mission", a.mission.Name())}
	}, extra...)
	a.logger = slogManager.Logger()
	a.logger.Info("Starting up", "version", CurrentVersion, "build", BuildDate)

	// world
	geoCfg := config.GetGeoConfig()
	proj, err := geo.NewProjector(geoCfg.OriginLon, geoCfg.OriginLat, geoCfg.MetersPerPixel)
	if err != nil {
		return err
	}
	cfg, err := simConfigFromViper()
	if err != nil {
		return err
	}
	scriptText, err := loadScript(simCfg.ScriptFile)
	if err != nil {
		return err
	}
	a.template = missionTemplate(cfg, simCfg, geoCfg, scriptText)

	// recording
	a.backend, err = storage.NewBackend(config.GetStorageConfig(), storage.Options{
		Projector: proj,
		Logger:    a.logger,
		DBLogger:  a.logs.Logger,
	})
	if err != nil {
		return err
	}
	if err := a.backend.Init(); err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer a.backend.Close()
	a.logger.Info("Storage backend initialized", "type", viper.GetString("storage.type"))

	deps := worker.Dependencies{
		Backend:        a.backend,
		Projector:      proj,
		MissionContext: a.mission,
		Logger:         a.logger,
		StateInterval:  simCfg.RecordInterval,
	}
	if viper.GetBool("influx.enabled") {
		im := influx.NewManager(a.logs.Logger, logging.SessionFile(logsDir, appName, "influx.lp.gz", sessionStart))
		if err := im.Connect(ctx); err != nil {
			a.logger.Warn("InfluxDB unavailable", "error", err)
		} else {
			defer im.Close()
			deps.Influx = im
		}
	}
	a.worker = worker.NewManager(deps)
	defer a.worker.Close()

	// simulation
	hub := server.NewHub(simCfg.SnapshotInterval, a.logger)
	a.sim, err = sim.New(cfg, sim.WithListener(a.worker), sim.WithListener(hub))
	if err != nil {
		return err
	}
	if err := a.beginMission(); err != nil {
		return err
	}

	d, err := dispatcher.New(logging.NewCommandLogger(a.logs.Logger))
	if err != nil {
		return err
	}
	handlers.NewService(handlers.Dependencies{
		Sim:           a.sim,
		Logger:        a.logger,
		DefaultScript: scriptText,
		OnReset:       a.rotateMission,
	}).Register(d)

	var wg sync.WaitGroup
	spawn := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("Component stopped", "component", name, "error", err)
			}
		}()
	}

	spawn("sim", func(ctx context.Context) error { return a.sim.Run(ctx, simCfg.TickInterval) })

	if httpCfg := config.GetHTTPConfig(); httpCfg.Enabled {
		srv := server.New(httpCfg.Address, d, hub, a.logger)
		spawn("http", srv.ListenAndServe)
	}

	if serialCfg := config.GetSerialConfig(); serialCfg.Enabled {
		port, err := nmea.OpenSerial(serialCfg.Port, serialCfg.BaudRate)
		if err != nil {
			a.logger.Error("NMEA output disabled", "error", err)
		} else {
			defer port.Close()
			out := nmea.NewOutput(port, proj, a.sim.Snapshot, serialCfg.Interval, a.logger)
			spawn("nmea", out.Run)
			a.logger.Info("NMEA output started", "port", serialCfg.Port, "baud", serialCfg.BaudRate)
		}
	}

	if monCfg := config.GetMonitorConfig(); monCfg.Enabled {
		mon := monitor.NewService(monitor.Dependencies{
			Sim:            a.sim,
			MissionContext: a.mission,
			WorkerManager:  a.worker,
			Logger:         a.logger,
			File:           filepath.Join(logsDir, monCfg.File),
			Interval:       monCfg.Interval,
		})
		if err := mon.Start(); err != nil {
			return err
		}
		defer mon.Stop()
	}

	if viper.GetBool("console") {
		c := newConsole(os.Stdin, os.Stdout, d)
		spawn("console", c.Run)
	}

	if simCfg.Autorun {
		if _, err := d.Dispatch(dispatcher.Event{Command: handlers.CmdRun, Source: "startup"}); err != nil {
			a.logger.Error("Autorun failed", "error", err)
		}
	}

	<-ctx.Done()
	a.logger.Info("Shutting down")
	wg.Wait()

	a.rotateMu.Lock()
	defer a.rotateMu.Unlock()
	a.endMission()
	return nil
}

// beginMission starts a fresh recording from the template.
func (a *app) beginMission() error {
	m := a.mission.Begin(a.template, time.Now())
	if err := a.worker.StartMission(m); err != nil {
		return fmt.Errorf("starting mission: %w", err)
	}
	a.logger.Info("Mission started", "uuid", m.UUID)
	return nil
}

// endMission closes the current recording and uploads it when configured.
func (a *app) endMission() {
	m := a.mission.GetMission()
	if text := a.sim.Script(); text != "" {
		m.Script = text
	}
	if err := a.worker.EndMission(); err != nil {
		a.logger.Error("Failed to end mission", "error", err)
		return
	}
	a.logger.Info("Mission ended", "uuid", m.UUID)

	if viper.GetBool("api.upload") {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := uploadRecording(ctx, a.backend, api.New(viper.GetString("api.serverUrl"), viper.GetString("api.apiKey"))); err != nil {
			a.logger.Error("Upload failed", "error", err)
		}
	}
}

// rotateMission ends the current recording and starts the next one after a
// reset.
func (a *app) rotateMission() {
	a.rotateMu.Lock()
	defer a.rotateMu.Unlock()
	a.endMission()
	if err := a.beginMission(); err != nil {
		a.logger.Error("Failed to start mission", "error", err)
	}
}

// uploadRecording sends the backend's exported file to the archive.
func uploadRecording(ctx context.Context, backend storage.Backend, client *api.Client) error {
	u, ok := backend.(storage.Uploadable)
	if !ok {
		return nil
	}
	path := u.GetExportedFilePath()
	if path == "" {
		return nil
	}
	if err := client.Healthcheck(ctx); err != nil {
		return err
	}
	return client.Upload(ctx, path, u.GetExportMetadata())
}

// simConfigFromViper builds the simulation setup from arena.* and vehicle.*.
func simConfigFromViper() (sim.Config, error) {
	arenaCfg, err := config.GetArenaConfig()
	if err != nil {
		return sim.Config{}, err
	}
	vehicleCfg := config.GetVehicleConfig()

	arena := vehicle.Arena{
		Width:     arenaCfg.Width,
		Height:    arenaCfg.Height,
		Pad:       arenaCfg.Pad,
		Margin:    arenaCfg.Margin,
		Radius:    arenaCfg.CollisionRadius,
		Obstacles: vehicle.DefaultObstacles(),
	}
	if arenaCfg.Obstacles != nil {
		arena.Obstacles = make([]vehicle.Obstacle, len(arenaCfg.Obstacles))
		for i, o := range arenaCfg.Obstacles {
			arena.Obstacles[i] = vehicle.Obstacle{X1: o.X1, Y1: o.Y1, X2: o.X2, Y2: o.Y2}
		}
	}

	return sim.Config{
		Home:      vehicle.Point{X: vehicleCfg.HomeX, Y: vehicleCfg.HomeY},
		Speed:     vehicleCfg.Speed,
		TurnSpeed: vehicleCfg.TurnSpeed,
		Arena:     arena,
	}, nil
}

// missionTemplate describes every mission flown in this run.
func missionTemplate(cfg sim.Config, simCfg config.SimConfig, geoCfg config.GeoConfig, script string) core.Mission {
	obstacles := make([]core.Obstacle, len(cfg.Arena.Obstacles))
	for i, o := range cfg.Arena.Obstacles {
		obstacles[i] = core.Obstacle{X1: o.X1, Y1: o.Y1, X2: o.X2, Y2: o.Y2}
	}
	return core.Mission{
		MissionName:     simCfg.MissionName,
		Author:          simCfg.Author,
		Tag:             simCfg.Tag,
		Script:          script,
		HomeX:           cfg.Home.X,
		HomeY:           cfg.Home.Y,
		OriginLongitude: geoCfg.OriginLon,
		OriginLatitude:  geoCfg.OriginLat,
		MetersPerPixel:  geoCfg.MetersPerPixel,
		Arena: core.Arena{
			Width:     cfg.Arena.Width,
			Height:    cfg.Arena.Height,
			Radius:    cfg.Arena.Radius,
			Obstacles: obstacles,
		},
		ExtensionVersion: CurrentVersion,
		ExtensionBuild:   BuildDate,
	}
}

// loadScript reads the mission script file. An empty path means the built-in
// default mission.
func loadScript(path string) (string, error) {
	if path == "" {
		return script.DefaultScript, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading script: %w", err)
	}
	return string(data), nil
}
