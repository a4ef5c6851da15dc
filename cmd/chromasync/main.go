// chroma-sync mirrors ambient lighting broadcast colors onto local
// lighting devices: a 4-zone HID keyboard backlight and WLED network LED
// controllers. Devices follow the host's suspend and resume transitions.
//
// Configuration is read from configs/config.yaml or CHROMASYNC_CONFIG.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/chroma-sync/internal/api"
	"github.com/nerrad567/chroma-sync/internal/bridges"
	"github.com/nerrad567/chroma-sync/internal/broadcast"
	"github.com/nerrad567/chroma-sync/internal/device"
	"github.com/nerrad567/chroma-sync/internal/discovery"
	"github.com/nerrad567/chroma-sync/internal/engine"
	"github.com/nerrad567/chroma-sync/internal/infrastructure/config"
	"github.com/nerrad567/chroma-sync/internal/infrastructure/database"
	"github.com/nerrad567/chroma-sync/internal/infrastructure/influxdb"
	"github.com/nerrad567/chroma-sync/internal/infrastructure/logging"
	"github.com/nerrad567/chroma-sync/internal/infrastructure/mqtt"
	"github.com/nerrad567/chroma-sync/internal/power"
	"github.com/nerrad567/chroma-sync/internal/schedule"
	"github.com/nerrad567/chroma-sync/internal/settings"
	"github.com/nerrad567/chroma-sync/internal/syncctl"
	"github.com/nerrad567/chroma-sync/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// scheduleTimeout bounds one scheduled enable or disable.
const scheduleTimeout = 30 * time.Second

func main() {
	// Cancelled on Ctrl+C or SIGTERM; run then shuts down in order.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting chroma-sync",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Settings database
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", db.Path())

	store := settings.NewStore(db)
	seeded, err := store.Seed(ctx, settings.FromConfig(cfg))
	if err != nil {
		return fmt.Errorf("seeding settings: %w", err)
	}
	if seeded {
		log.Info("settings seeded from configuration", "devices", len(cfg.Devices))
	}
	changed, err := store.ApplyAppID(ctx, cfg.App.BroadcastAppID)
	if err != nil {
		return fmt.Errorf("storing broadcast app id: %w", err)
	}
	if changed {
		log.Info("broadcast app id updated from configuration")
	}
	rec, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	// Optional integrations
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = connectMQTT(cfg.MQTT, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
	} else {
		log.Info("MQTT disabled")
	}

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Device registry
	registry := device.NewRegistry(registryOptions(cfg))
	registry.SetLogger(log.Component("device"))
	if influxClient != nil {
		registry.SetObserver(operationRecorder(influxClient))
	}
	factory := bridges.NewFactory(log.Component("bridges"))
	addDevices(registry, factory, rec.Devices, log)
	log.Info("device registry initialised", "devices", registry.Len())

	syncCtl := syncctl.New(registry, store)
	syncCtl.SetLogger(log.Component("sync"))

	// Presentation: websocket hub, plus MQTT when connected.
	hub := api.NewHub(cfg.WebSocket, log.Component("websocket"))
	go hub.Run(ctx)
	presenters := broadcast.Presenters{hub}
	var mqttPub *mqttPresenter
	if mqttClient != nil {
		mqttPub = newMQTTPresenter(mqttClient, mqttClient.Topics(), log.Component("mqtt"))
		presenters = append(presenters, mqttPub)
		if subErr := mqttPub.handleSyncCommands(ctx, mqttClient, byte(cfg.MQTT.QoS), syncCtl); subErr != nil {
			return fmt.Errorf("subscribing to sync commands: %w", subErr)
		}
		go mqttPub.relaySyncState(ctx, syncCtl)
	}

	// Broadcast router
	router, err := newRouter(cfg, rec.AppID, mqttClient, registry, syncCtl)
	if err != nil {
		return err
	}
	router.SetLogger(log.Component("broadcast"))
	router.SetPresenter(presenters)
	if influxClient != nil {
		router.SetObserver(func(ev broadcast.Event, forwarded bool) {
			influxClient.WriteBroadcastEvent(string(ev.Type), forwarded)
		})
	}

	// Power controller
	powerSource, err := power.NewSource(cfg.Power.Source, power.Options{
		MQTT:  mqttSubscriber(mqttClient),
		Topic: mqttTopic(mqttClient, mqtt.Topics.PowerEvent),
		QoS:   byte(cfg.MQTT.QoS),
	})
	if err != nil {
		return fmt.Errorf("creating power source: %w", err)
	}
	powerCtl := power.NewController(powerSource, registry)
	powerCtl.SetLogger(log.Component("power"))
	powerCtl.SetSink(func(ev power.Event, report device.Report) {
		presenters.PresentReport(report)
		if influxClient != nil {
			influxClient.WritePowerEvent(string(ev.Kind), ev.Code)
		}
	})

	// Engine
	eng := engine.New(registry, syncCtl, router, powerCtl, engine.Options{
		SyncEnabled:   rec.SyncEnabled,
		ShutdownGrace: cfg.ShutdownGrace(),
	})
	eng.SetLogger(log.Component("engine"))
	if startErr := eng.Start(ctx); startErr != nil {
		return fmt.Errorf("starting engine: %w", startErr)
	}
	if mqttPub != nil {
		mqttPub.PresentInit(router.Status(), eng.Status().Broadcast)
	}

	// Event sources that can toggle sync stop before the final unload.
	stopCommands := func() {
		if mqttPub != nil {
			mqttPub.stopSyncCommands(mqttClient)
		}
	}

	// Scheduled sync toggling
	sched, err := schedule.FromConfig(cfg.Schedule, syncCtl, scheduleTimeout)
	if err != nil {
		stopCommands()
		shutdownEngine(eng, cfg, log)
		return fmt.Errorf("configuring schedule: %w", err)
	}
	if sched != nil {
		sched.SetLogger(log.Component("schedule"))
		sched.Start()
		log.Info("sync schedule started", "entries", len(sched.Entries()))
	}

	// Control API
	var server *api.Server
	if cfg.API.Enabled {
		server, err = api.New(apiDeps(cfg, log, registry, store, factory, syncCtl, router, eng, hub, db, mqttClient, influxClient))
		if err == nil {
			err = server.Start(ctx)
		}
		if err != nil {
			stopSchedule(sched, log)
			stopCommands()
			shutdownEngine(eng, cfg, log)
			return fmt.Errorf("starting API server: %w", err)
		}
	}

	log.Info("initialisation complete, waiting for shutdown signal",
		"sync_enabled", syncCtl.Enabled(),
		"broadcast_ok", eng.Status().Broadcast.OK,
	)

	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	if server != nil {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}
	stopSchedule(sched, log)
	stopCommands()
	shutdownEngine(eng, cfg, log)

	// Deferred Close() calls run in reverse order: InfluxDB, MQTT, database.
	log.Info("chroma-sync stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses CHROMASYNC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("CHROMASYNC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func registryOptions(cfg *config.Config) device.RegistryOptions {
	opts := device.DefaultRegistryOptions()
	opts.OpTimeout = cfg.DeviceTimeout()
	if cfg.Engine.QueueWarnDepth > 0 {
		opts.QueueWarnDepth = cfg.Engine.QueueWarnDepth
	}
	opts.RateLimit = cfg.Engine.MaxOpsPerSecond
	opts.RateBurst = cfg.Engine.Burst
	return opts
}

// addDevices registers every stored device in order. A device whose
// backend cannot be built is logged and left out.
func addDevices(registry *device.Registry, factory bridges.Factory, cfgs []device.Config, log *logging.Logger) {
	for _, cfg := range cfgs {
		dev, err := factory(cfg)
		if err != nil {
			log.Warn("device skipped", "device_id", cfg.ID, "kind", cfg.Kind, "error", err)
			continue
		}
		if err := registry.Add(dev); err != nil {
			log.Warn("device not registered", "device_id", cfg.ID, "error", err)
		}
	}
}

// operationRecorder writes one telemetry point per device operation.
func operationRecorder(client *influxdb.Client) device.Observer {
	return func(res device.Result) {
		client.WriteOperation(influxdb.OperationSample{
			DeviceID: res.DeviceID,
			Kind:     string(res.Kind),
			Op:       string(res.Op),
			Outcome:  res.Outcome(),
			Duration: res.Duration,
		})
	}
}

// newRouter builds the broadcast router over the configured source.
func newRouter(cfg *config.Config, appID string, mqttClient *mqtt.Client, registry *device.Registry, gate broadcast.Gate) (*broadcast.Router, error) {
	policy, err := broadcast.ParsePolicy(cfg.Broadcast.ColorPolicy)
	if err != nil {
		return nil, fmt.Errorf("broadcast color policy: %w", err)
	}
	source, err := broadcast.NewSource(cfg.Broadcast.Source, broadcast.Options{
		DLL:    cfg.Broadcast.DLL,
		MQTT:   broadcastSubscriber(mqttClient),
		Topic:  mqttTopic(mqttClient, mqtt.Topics.BroadcastEffect),
		QoS:    byte(cfg.MQTT.QoS),
		Policy: policy,
	})
	if err != nil {
		return nil, fmt.Errorf("creating broadcast source: %w", err)
	}
	return broadcast.NewRouter(source, registry, gate, broadcast.RouterOptions{
		AppID:  appID,
		Buffer: cfg.Broadcast.EventBuffer,
	}), nil
}

// mqttSubscriber and broadcastSubscriber return a nil interface when MQTT
// is disabled, so the source constructors can report it.
func mqttSubscriber(c *mqtt.Client) power.Subscriber {
	if c == nil {
		return nil
	}
	return c
}

func broadcastSubscriber(c *mqtt.Client) broadcast.Subscriber {
	if c == nil {
		return nil
	}
	return c
}

func mqttTopic(c *mqtt.Client, topic func(mqtt.Topics) string) string {
	if c == nil {
		return ""
	}
	return topic(c.Topics())
}

func apiDeps(
	cfg *config.Config,
	log *logging.Logger,
	registry *device.Registry,
	store *settings.Store,
	factory bridges.Factory,
	syncCtl *syncctl.Controller,
	router *broadcast.Router,
	eng *engine.Engine,
	hub *api.Hub,
	db *database.DB,
	mqttClient *mqtt.Client,
	influxClient *influxdb.Client,
) api.Deps {
	deps := api.Deps{
		Config:    cfg.API,
		WS:        cfg.WebSocket,
		Logger:    log.Component("api"),
		Registry:  registry,
		Devices:   store.Devices(),
		Factory:   factory,
		Sync:      syncCtl,
		Settings:  store,
		Broadcast: router,
		Engine:    eng,
		DB:        db,
		Hub:       hub,
		Version:   version,
	}
	if cfg.Discovery.Enabled {
		scanner := discovery.NewScanner(time.Duration(cfg.Discovery.Timeout) * time.Second)
		scanner.SetLogger(log.Component("discovery"))
		deps.Scanner = scanner
	}
	if mqttClient != nil {
		deps.MQTT = mqttClient
	}
	if influxClient != nil {
		deps.InfluxDB = influxClient
	}
	return deps
}

func stopSchedule(sched *schedule.Scheduler, log *logging.Logger) {
	if sched == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), scheduleTimeout)
	defer cancel()
	if err := sched.Stop(ctx); err != nil {
		log.Warn("schedule stop incomplete", "error", err)
	}
}

// shutdownEngine unsubscribes the event sources and unloads every device.
// It runs on a fresh context because the run context is already done.
func shutdownEngine(eng *engine.Engine, cfg *config.Config, log *logging.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace()+cfg.DeviceTimeout())
	defer cancel()
	if err := eng.Shutdown(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.Error("engine shutdown incomplete", "error", err)
	} else if err != nil {
		log.Warn("device queues did not drain before the grace period ended", "error", err)
	}
}
