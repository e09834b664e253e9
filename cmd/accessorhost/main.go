// Package main is the entry point for the accessor host.
//
// The host loads accessor instances from its registry, runs each one behind
// a device session, and exposes their ports over MQTT, HTTP and WebSocket.
// Last-known values may be mirrored to Redis and session telemetry written
// to InfluxDB.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/gray-logic-accessors/internal/api"
	"github.com/nerrad567/gray-logic-accessors/internal/audit"
	"github.com/nerrad567/gray-logic-accessors/internal/gateway"
	"github.com/nerrad567/gray-logic-accessors/internal/host"
	"github.com/nerrad567/gray-logic-accessors/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-accessors/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-accessors/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-accessors/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-accessors/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-accessors/internal/infrastructure/statemirror"
	"github.com/nerrad567/gray-logic-accessors/internal/instance"
	"github.com/nerrad567/gray-logic-accessors/internal/metrics"
	"github.com/nerrad567/gray-logic-accessors/internal/telemetry"
	"github.com/nerrad567/gray-logic-accessors/migrations"
)

// Version information, set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

// healthCheckTimeout bounds the startup health check.
const healthCheckTimeout = 10 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until ctx is cancelled.
// Deferred cleanups run in reverse start order.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting accessor host", "version", version, "commit", commit, "build_date", date)

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "host_id", cfg.Host.ID, "accessors", len(cfg.Accessors))

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database connection")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	registry, err := loadRegistry(ctx, cfg, db, log)
	if err != nil {
		return err
	}

	auditor := audit.NewRecorder(audit.NewSQLiteRepository(db.DB), log.Component("audit"))
	auditor.Start(ctx)
	defer func() {
		log.Info("flushing audit log")
		auditor.Stop()
	}()

	h := host.New(host.Options{Logger: log.Component("host")})
	defer func() {
		log.Info("stopping accessors")
		h.Stop()
	}()

	prom := metrics.New(h)
	h.AddSink(prom)

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = connectMQTT(cfg, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing MQTT connection")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()

		gw, gwErr := gateway.New(gateway.Options{
			Broker:         mqttClient,
			Host:           h,
			Topics:         mqttClient.Topics(),
			QoS:            mqttClient.QoS(),
			Logger:         log.Component("gateway"),
			Version:        version,
			HealthInterval: time.Duration(cfg.Host.HealthInterval) * time.Second,
			Audit:          auditor,
		})
		if gwErr != nil {
			return fmt.Errorf("creating MQTT gateway: %w", gwErr)
		}
		if err := gw.Start(ctx); err != nil {
			return fmt.Errorf("starting MQTT gateway: %w", err)
		}
		defer func() {
			log.Info("stopping MQTT gateway")
			gw.Stop()
		}()
		h.AddSink(gw)
	} else {
		log.Info("MQTT gateway disabled")
	}

	var mirror *statemirror.Mirror
	if cfg.Redis.Enabled {
		store, storeErr := statemirror.Connect(ctx, cfg.Redis)
		if storeErr != nil {
			return fmt.Errorf("connecting to Redis: %w", storeErr)
		}
		defer func() {
			log.Info("closing Redis connection")
			if closeErr := store.Close(); closeErr != nil {
				log.Error("error closing Redis", "error", closeErr)
			}
		}()

		mirror = statemirror.New(store, statemirror.Options{
			Prefix: cfg.Redis.KeyPrefix,
			TTL:    time.Duration(cfg.Redis.TTL) * time.Second,
			Logger: log.Component("statemirror"),
		})
		mirror.Start(ctx)
		defer func() {
			log.Info("stopping state mirror")
			mirror.Stop()
		}()
		h.AddSink(mirror)
		prom.AddMirror(mirror)
		log.Info("state mirror started", "addr", cfg.Redis.Addr)
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

		reporter := telemetry.New(telemetry.Config{
			HostID:   cfg.Host.ID,
			Interval: time.Duration(cfg.Host.TelemetryInterval) * time.Second,
			Writer:   influxClient,
			Source:   h,
			Logger:   log.Component("telemetry"),
		})
		reporter.Start(ctx)
		defer func() {
			log.Info("stopping telemetry reporter")
			reporter.Stop()
		}()
		log.Info("connected to InfluxDB", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	startAccessors(ctx, h, registry, log)

	if cfg.API.Enabled {
		deps := api.Deps{
			Config:    cfg.API,
			WS:        cfg.WebSocket,
			Logger:    log.Component("api"),
			Host:      h,
			Instances: registry,
			Metrics:   prom.Handler(),
			Audit:     auditor,
			Version:   version,
		}
		if mqttClient != nil {
			deps.MQTT = mqttClient
		}
		if mirror != nil {
			deps.Mirror = mirror
			deps.OnRemove = func(ctx context.Context, id string) {
				if forgetErr := mirror.Forget(ctx, id); forgetErr != nil {
					log.Warn("clearing mirrored state", "accessor", id, "error", forgetErr)
				}
			}
		}

		srv, srvErr := api.New(deps)
		if srvErr != nil {
			return fmt.Errorf("creating API server: %w", srvErr)
		}
		h.AddSink(srv.Hub())
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error stopping API server", "error", closeErr)
			}
		}()
		log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)
	} else {
		log.Info("API server disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	stats := h.Stats()
	log.Info("initialisation complete, waiting for shutdown signal",
		"instances", stats.Instances,
		"ready", stats.Ready,
		"degraded", stats.Degraded,
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	// Deferred cleanups run in reverse: API, telemetry, InfluxDB, mirror,
	// Redis, gateway, MQTT, accessors, audit, database.
	log.Info("accessor host stopped")
	return nil
}

// getConfigPath returns ACCESSORHOST_CONFIG if set, otherwise the default.
func getConfigPath() string {
	if path := os.Getenv(config.EnvPrefix + "CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadRegistry builds the instance registry and seeds it with the
// accessors declared in config. Seeding never overwrites stored records.
func loadRegistry(ctx context.Context, cfg *config.Config, db *database.DB, log *logging.Logger) (*instance.Registry, error) {
	registry := instance.NewRegistry(instance.NewSQLiteRepository(db.DB))
	registry.SetLogger(log.Component("instance"))

	if err := registry.RefreshCache(ctx); err != nil {
		return nil, fmt.Errorf("loading accessor instances: %w", err)
	}

	seeded, err := registry.Seed(ctx, seedRecords(cfg.Accessors))
	if err != nil {
		return nil, fmt.Errorf("seeding accessor instances: %w", err)
	}
	log.Info("instance registry loaded", "instances", registry.Count(), "seeded", seeded)
	return registry, nil
}

// seedRecords converts config entries into registry records.
func seedRecords(accessors []config.AccessorConfig) []instance.Record {
	records := make([]instance.Record, 0, len(accessors))
	for _, a := range accessors {
		records = append(records, instance.Record{
			ID:      a.ID,
			Kind:    a.Kind,
			Name:    a.Name,
			Params:  a.Params,
			Enabled: a.IsEnabled(),
			Source:  instance.SourceConfig,
		})
	}
	return records
}

// startAccessors starts every enabled instance. A failing device leaves its
// instance degraded rather than aborting startup; only configuration
// mistakes such as an unknown kind are logged and skipped.
func startAccessors(ctx context.Context, h *host.Host, registry *instance.Registry, log *logging.Logger) {
	for _, rec := range registry.Enabled() {
		inst, err := h.Start(ctx, host.Spec{
			ID:     rec.ID,
			Kind:   rec.Kind,
			Name:   rec.Name,
			Params: rec.Params,
		})
		if err != nil {
			log.Error("accessor not started", "accessor", rec.ID, "kind", rec.Kind, "error", err)
			continue
		}
		if inst.Status == host.StatusDegraded {
			log.Warn("accessor degraded", "accessor", rec.ID, "kind", rec.Kind, "error", inst.InitError, "code", inst.ErrorCode)
			continue
		}
		log.Info("accessor started", "accessor", rec.ID, "kind", rec.Kind)
	}
}

func connectMQTT(cfg *config.Config, log *logging.Logger) (*mqtt.Client, error) {
	client, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log.Component("mqtt"))
	client.SetOnConnect(func() {
		log.Info("MQTT connected")
	})
	client.SetOnDisconnect(func(err error) {
		if err != nil {
			log.Warn("MQTT disconnected", "error", err)
		}
	})
	log.Info("connected to MQTT broker",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"prefix", cfg.MQTT.TopicPrefix,
	)
	return client, nil
}

// healthCheck verifies the infrastructure connections that were enabled.
// mqttClient and influxClient may be nil.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	var errs []error
	if err := db.HealthCheck(ctx); err != nil {
		errs = append(errs, fmt.Errorf("database: %w", err))
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mqtt: %w", err))
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("influxdb: %w", err))
		}
	}
	return errors.Join(errs...)
}
