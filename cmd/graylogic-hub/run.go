package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-hub/internal/api"
	"github.com/nerrad567/gray-logic-hub/internal/audit"
	"github.com/nerrad567/gray-logic-hub/internal/coordinator"
	"github.com/nerrad567/gray-logic-hub/internal/entity"
	"github.com/nerrad567/gray-logic-hub/internal/entry"
	"github.com/nerrad567/gray-logic-hub/internal/history"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-hub/internal/integrations/rest"
	"github.com/nerrad567/gray-logic-hub/internal/state"
	"github.com/nerrad567/gray-logic-hub/internal/telemetry"
	"github.com/nerrad567/gray-logic-hub/migrations"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the hub",
		Long: `Start the hub: set up every configured entry, attach template sensors
and serve the HTTP API until interrupted (SIGINT or SIGTERM).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return run(ctx, path)
		},
	}
}

// run is the hub's lifetime. Components are closed in reverse order of
// creation by deferred calls.
func run(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting Gray Logic Hub",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

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

	// Parse templates before touching devices so a bad template fails fast.
	parsed, err := parseTemplates(cfg.Templates)
	if err != nil {
		return err
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	historyRepo := history.NewSQLiteRepository(db.DB)
	recorder := history.NewRecorder(historyRepo, cfg.Coordinator.HistoryRetention, log.Component("history"))
	recorder.Start(ctx)
	defer recorder.Close()

	trail := audit.NewTrail(audit.NewSQLiteRepository(db.DB), log.Component("audit"))

	observers := coordinator.Observers{recorder}
	health := map[string]api.HealthChecker{"database": db}

	var provider *telemetry.Provider
	if cfg.Telemetry.Enabled {
		provider, err = telemetry.NewProvider(logging.ServiceName, version)
		if err != nil {
			return fmt.Errorf("creating telemetry provider: %w", err)
		}
		defer func() {
			if shutdownErr := provider.Shutdown(context.Background()); shutdownErr != nil {
				log.Error("error shutting down telemetry", "error", shutdownErr)
			}
		}()
		otel.SetMeterProvider(provider.MeterProvider())

		metrics, metricsErr := telemetry.NewRefreshMetrics(provider.MeterProvider())
		if metricsErr != nil {
			return fmt.Errorf("creating refresh metrics: %w", metricsErr)
		}
		observers = append(observers, metrics)
		log.Info("telemetry enabled", "path", cfg.Telemetry.Path)
	}

	store := state.NewStore()
	sink := entity.Sink{
		Store:  store,
		Topic:  (mqtt.Topics{}).EntityState,
		QoS:    byte(cfg.MQTT.QoS),
		Logger: log.Component("entity"),
	}

	manager := entry.NewManager(cfg.Coordinator.SetupRetry, log.Component("entry"))

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT, log.Component("mqtt"))
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})

		sink.Publisher = mqttClient
		health["mqtt"] = mqttClient

		if err := mqttClient.Subscribe((mqtt.Topics{}).AllEntryCommands(), byte(cfg.MQTT.QoS),
			commandHandler(ctx, manager, trail, log.Component("command"))); err != nil {
			return fmt.Errorf("subscribing to commands: %w", err)
		}
	} else {
		log.Info("MQTT disabled")
	}

	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
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
		stopFollow := influxClient.FollowStore(store)
		defer stopFollow()

		observers = append(observers, influxClient)
		health["influxdb"] = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	deps := api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Security: cfg.Security,
		Logger:   log.Component("api"),
		Entries:  manager,
		States:   store,
		History:  historyRepo,
		Audit:    trail,
		Health:   health,
		Version:  version,
	}
	if provider != nil {
		deps.Metrics = provider.Handler()
		deps.MetricsPath = cfg.Telemetry.Path
	}
	srv, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	observers = append(observers, srv.Hub())

	integration := rest.New(sink,
		rest.WithObserver(observers),
		rest.WithLogger(log.Component("rest")),
	)
	defer manager.UnloadAll()
	setupEntries(ctx, manager, integration, cfg.Entries, log)

	detach, err := attachTemplates(parsed, sink)
	if err != nil {
		return err
	}
	defer detach()

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("Gray Logic Hub started",
		"entries", len(cfg.Entries),
		"templates", len(parsed),
	)

	<-ctx.Done()
	log.Info("shutdown signal received, stopping")
	return nil
}

// setupEntries sets up every configured entry concurrently. Failures are
// logged: a not-ready entry keeps retrying in the background and a failed
// one stays visible in setup_error.
func setupEntries(ctx context.Context, manager *entry.Manager, integration entry.Integration, cfgs []config.EntryConfig, log *logging.Logger) {
	var g errgroup.Group
	for _, c := range cfgs {
		e := entry.New(c)
		g.Go(func() error {
			err := manager.Setup(ctx, e, integration)
			switch {
			case err == nil:
			case errors.Is(err, coordinator.ErrSetupNotReady):
				log.Warn("entry not ready, retrying in background", "entry_id", e.ID, "error", err)
			default:
				log.Error("entry setup failed", "entry_id", e.ID, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // setup errors are logged per entry
}
