package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	eventapp "github.com/pharmaledger/backend/internal/application/event"
	inventoryapp "github.com/pharmaledger/backend/internal/application/inventory"
	"github.com/pharmaledger/backend/internal/domain/shared"
	"github.com/pharmaledger/backend/internal/infrastructure/auth"
	"github.com/pharmaledger/backend/internal/infrastructure/cache"
	"github.com/pharmaledger/backend/internal/infrastructure/config"
	"github.com/pharmaledger/backend/internal/infrastructure/event"
	"github.com/pharmaledger/backend/internal/infrastructure/logger"
	"github.com/pharmaledger/backend/internal/infrastructure/messaging"
	"github.com/pharmaledger/backend/internal/infrastructure/migration"
	"github.com/pharmaledger/backend/internal/infrastructure/persistence"
	"github.com/pharmaledger/backend/internal/infrastructure/scheduler"
	"github.com/pharmaledger/backend/internal/infrastructure/storage"
	batchstrategy "github.com/pharmaledger/backend/internal/infrastructure/strategy/batch"
	"github.com/pharmaledger/backend/internal/infrastructure/telemetry"
	"github.com/pharmaledger/backend/internal/interfaces/http/handler"
	"github.com/pharmaledger/backend/internal/interfaces/http/middleware"
	"github.com/pharmaledger/backend/internal/interfaces/http/router"
	"github.com/pharmaledger/backend/migrations"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry: traces, metrics and the zap log bridge share one collector
	telemetryCfg := telemetry.ConfigFrom(cfg.Telemetry, version)
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetryCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfigFrom(cfg.Telemetry), log)
	if err != nil {
		log.Fatal("Failed to initialize profiler", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Profiler stop failed", zap.Error(err))
		}
	}()
	if profiler.SpanProfilesWanted() {
		tracerProvider.EnableSpanProfiles()
	}

	metricsCfg := telemetryCfg
	metricsCfg.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled
	meterProvider, err := telemetry.NewMeterProvider(ctx, metricsCfg, cfg.Telemetry.MetricsInterval, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}

	logsCfg := telemetryCfg
	logsCfg.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, logsCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize log export", zap.Error(err))
	}
	exportLevel, err := zapcore.ParseLevel(cfg.Telemetry.LogsLevel)
	if err != nil {
		exportLevel = zapcore.InfoLevel
	}
	log = loggerProvider.Bridge(log, cfg.Telemetry.ServiceName, exportLevel)

	log.Info("Starting pharmacy ledger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfigFrom(cfg.Telemetry, cfg.Database.DBName), log)
	if err := dbTracing.Register(db.DB); err != nil {
		log.Warn("Database tracing unavailable", zap.Error(err))
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		log.Fatal("Failed to get underlying sql.DB", zap.Error(err))
	}
	if cfg.Database.MigrateOnStart {
		if err := migrateUp(sqlDB, log); err != nil {
			log.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}

	meter := meterProvider.Meter("github.com/pharmaledger/backend")
	if reg, err := telemetry.RegisterDBPoolMetrics(meter, sqlDB); err != nil {
		log.Warn("Database pool metrics unavailable", zap.Error(err))
	} else {
		defer func() { _ = reg.Unregister() }()
	}

	// Event pipeline: outbox -> in-process bus -> metrics and broker
	serializer := event.NewEventSerializer()
	event.RegisterLedgerEvents(serializer)
	eventBus := event.NewInMemoryEventBus(log)

	ledgerMetrics, err := telemetry.NewLedgerMetrics(meter)
	if err != nil {
		log.Fatal("Failed to create ledger metrics", zap.Error(err))
	}
	eventBus.Subscribe(ledgerMetrics)

	idempotencyStore, err := cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(!cfg.App.IsProduction()),
	).CreateStore(ctx)
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	var broker *messaging.Connection
	if cfg.RabbitMQ.Enabled {
		broker, err = messaging.Dial(&cfg.RabbitMQ, log)
		if err != nil {
			log.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
		}
		defer func() {
			if err := broker.Close(); err != nil {
				log.Error("Error closing RabbitMQ connection", zap.Error(err))
			}
		}()

		forwarder := messaging.NewEventForwarder(broker, serializer, broker.Exchange(), cfg.RabbitMQ.PublishTimeout, log)
		eventBus.Subscribe(
			event.NewIdempotentHandler(forwarder, idempotencyStore, log,
				event.WithIdempotencyConfig(shared.IdempotencyConfig{
					TTL:     cfg.Event.IdempotencyTTL,
					Enabled: true,
				}),
			),
			serializer.RegisteredTypes()...,
		)
	}
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	outboxRepo := event.NewGormOutboxRepository(db.DB)
	var outboxProcessor *event.OutboxProcessor
	if cfg.Event.ProcessorEnabled {
		processorCfg := event.DefaultOutboxProcessorConfig()
		processorCfg.BatchSize = cfg.Event.BatchSize
		processorCfg.PollInterval = cfg.Event.PollInterval
		processorCfg.CleanupEnabled = cfg.Event.CleanupEnabled
		processorCfg.CleanupRetention = cfg.Event.CleanupRetention

		outboxProcessor = event.NewOutboxProcessor(outboxRepo, eventBus, serializer, processorCfg, log)
		if err := outboxProcessor.Start(ctx); err != nil {
			log.Fatal("Failed to start outbox processor", zap.Error(err))
		}
	} else {
		log.Warn("Outbox processor disabled, ledger events stay pending")
	}

	// Repositories and application services
	txScope := persistence.NewGormTransactionScope(db.DB)
	medicineRepo := persistence.NewGormMedicineRepository(db.DB)
	batchRepo := persistence.NewGormBatchRepository(db.DB)
	opnameRepo := persistence.NewGormOpnameRepository(db.DB)
	destructionRepo := persistence.NewGormDestructionRepository(db.DB)
	scanLogRepo := persistence.NewGormScanLogRepository(db.DB)
	auditRepo := persistence.NewGormAuditRepository(db.DB)

	reportStorage, err := storage.NewReportStorage(ctx, &cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to initialize report storage", zap.Error(err))
	}

	ledger := inventoryapp.NewStockLedger(log)
	medicineService := inventoryapp.NewMedicineService(txScope, medicineRepo, ledger, log)
	batchService := inventoryapp.NewBatchService(txScope, medicineRepo, batchRepo, ledger, cfg.Ledger.ExpiringSoonDays, log)
	allocationService := inventoryapp.NewAllocationService(txScope, medicineRepo, batchRepo,
		batchstrategy.NewFEFOBatchStrategy(), ledger, log)
	opnameService := inventoryapp.NewOpnameService(txScope, opnameRepo, ledger, log)
	destructionService := inventoryapp.NewDestructionService(txScope, destructionRepo, batchRepo, ledger,
		reportStorage, inventoryapp.ReportConfig{
			UploadURLExpiry:   cfg.Storage.UploadURLExpiry,
			DownloadURLExpiry: cfg.Storage.DownloadURLExpiry,
		}, log)
	auditService := inventoryapp.NewAuditService(scanLogRepo, auditRepo)
	outboxService := eventapp.NewOutboxService(outboxRepo, log)

	// Expiry sweep
	sweeper, err := scheduler.NewExpirySweeper(batchService, ledgerMetrics, scheduler.ExpirySweeperConfigFrom(cfg.Ledger), log)
	if err != nil {
		log.Fatal("Failed to create expiry sweeper", zap.Error(err))
	}
	if err := sweeper.Start(ctx); err != nil {
		log.Fatal("Failed to start expiry sweeper", zap.Error(err))
	}

	// Readiness: the database is required, caches and the broker are not
	checkers := []handler.HealthChecker{handler.PingChecker("database", false, sqlDB)}
	if pinger, ok := idempotencyStore.(interface{ Ping(context.Context) error }); ok {
		checkers = append(checkers, handler.HealthChecker{Name: "redis", Optional: true, Check: pinger.Ping})
	}
	if broker != nil {
		checkers = append(checkers, handler.FlagChecker("rabbitmq", true, broker.Healthy))
	}

	// HTTP
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := router.NewEngine(router.EngineConfig{
		HTTP: cfg.HTTP,
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     tracerProvider.IsEnabled(),
		},
		Profiling: middleware.ProfilingConfig{
			Enabled:   profiler.IsEnabled(),
			SkipPaths: middleware.DefaultProfilingConfig().SkipPaths,
		},
		Meter: meter,
	}, log)

	jwtCfg := middleware.DefaultJWTConfig(auth.NewJWTService(cfg.JWT))
	jwtCfg.AllowHeaderActor = cfg.JWT.AllowHeaderActor
	jwtCfg.Logger = log
	if cfg.JWT.AllowHeaderActor {
		log.Warn("X-User-ID header actors are accepted; never enable this in production")
	}

	router.Mount(engine, router.Handlers{
		Medicine:    handler.NewMedicineHandler(medicineService, batchService, allocationService),
		Batch:       handler.NewBatchHandler(batchService, sweeper),
		Audit:       handler.NewAuditHandler(auditService),
		Opname:      handler.NewOpnameHandler(opnameService),
		Destruction: handler.NewDestructionHandler(destructionService),
		Outbox:      handler.NewOutboxHandler(outboxService),
		Health:      handler.NewHealthHandler(cfg.App.Name, version, checkers...),
	}, router.WithAPIVersion("v1"), router.APIMiddleware(jwtCfg))

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down server...")
	case err := <-serverErr:
		log.Error("Server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := sweeper.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping expiry sweeper", zap.Error(err))
	}
	if outboxProcessor != nil {
		if err := outboxProcessor.Stop(shutdownCtx); err != nil {
			log.Error("Error stopping outbox processor", zap.Error(err))
		}
	}
	if err := eventBus.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping event bus", zap.Error(err))
	}
	for name, shutdown := range map[string]func(context.Context) error{
		"tracer": tracerProvider.Shutdown,
		"meter":  meterProvider.Shutdown,
		"logger": loggerProvider.Shutdown,
	} {
		if err := shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down telemetry provider", zap.String("provider", name), zap.Error(err))
		}
	}

	log.Info("Server exited gracefully")
}

// migrateUp applies the embedded migrations before serving
func migrateUp(db *sql.DB, log *zap.Logger) error {
	m, err := migration.NewFromFS(db, migrations.FS, log)
	if err != nil {
		return err
	}
	// Closing the migrator would close the shared pool, so it is left open.
	return m.Up()
}
