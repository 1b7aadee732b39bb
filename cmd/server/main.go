package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	appintegration "github.com/erp/erli-connector/internal/application/integration"
	"github.com/erp/erli-connector/internal/domain/integration"
	"github.com/erp/erli-connector/internal/infrastructure/cache"
	"github.com/erp/erli-connector/internal/infrastructure/config"
	"github.com/erp/erli-connector/internal/infrastructure/ecommerce"
	"github.com/erp/erli-connector/internal/infrastructure/logger"
	"github.com/erp/erli-connector/internal/infrastructure/migration"
	"github.com/erp/erli-connector/internal/infrastructure/persistence"
	"github.com/erp/erli-connector/internal/infrastructure/scheduler"
	"github.com/erp/erli-connector/internal/infrastructure/telemetry"
	"github.com/erp/erli-connector/internal/interfaces/http/handler"
	"github.com/erp/erli-connector/internal/interfaces/http/middleware"
	"github.com/erp/erli-connector/internal/interfaces/http/router"
	"github.com/erp/erli-connector/migrations"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// a missing .env file is fine, the environment may already be set
	_ = godotenv.Load()

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
		_ = log.Sync()
	}()

	ctx := context.Background()

	// OpenTelemetry: traces, metrics and the zap log bridge
	otel, err := setupTelemetry(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer otel.shutdown(log)
	log = otel.log

	log.Info("Starting ERLI connector",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	dbTracing := telemetry.DefaultDBTracingConfig()
	dbTracing.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled
	dbTracing.DBName = cfg.Database.DBName
	db, err := persistence.NewDatabase(&cfg.Database,
		persistence.WithGormLogger(gormLog),
		persistence.WithTracing(dbTracing, log),
	)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if cfg.Database.AutoMigrate {
		if err := migrate(db, log); err != nil {
			log.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}

	// Caches and the run lock, Redis-backed when configured
	cacheFactory := cache.NewFactory(cfg.Redis, cache.WithLogger(log))
	defer func() {
		if err := cacheFactory.Close(); err != nil {
			log.Error("Error closing Redis client", zap.Error(err))
		}
	}()
	attributeCache, err := cacheFactory.CreateAttributeIndexCache()
	if err != nil {
		log.Fatal("Failed to create attribute index cache", zap.Error(err))
	}
	runLock, err := cacheFactory.CreateRunLock()
	if err != nil {
		log.Fatal("Failed to create run lock", zap.Error(err))
	}

	// Marketplace client
	client, configured, err := newMarketplaceClient(cfg.Erli, log)
	if err != nil {
		log.Fatal("Failed to create ERLI client", zap.Error(err))
	}

	// Repositories
	catalogRepo := persistence.NewGormCatalogRepository(db.DB)
	productLinkRepo := persistence.NewGormProductLinkRepository(db.DB)
	orderLinkRepo := persistence.NewGormOrderLinkRepository(db.DB)
	syncLogRepo := persistence.NewGormSyncLogRepository(db.DB)
	configRepo := persistence.NewGormConfigurationRepository(db.DB)
	carrierRepo := persistence.NewGormCarrierRepository(db.DB)
	shippingMapRepo := persistence.NewGormShippingMapRepository(db.DB)
	categoryMapRepo := persistence.NewGormCategoryMapRepository(db.DB)
	customerRepo := persistence.NewGormCustomerRepository(db.DB)
	cartRepo := persistence.NewGormCartRepository(db.DB)
	orderRepo := persistence.NewGormOrderRepository(db.DB)

	// Application services
	journal := appintegration.NewJournal(syncLogRepo, log)
	statuses := appintegration.NewStatusTable(configRepo)

	indexer := appintegration.NewAttributeIndexer(appintegration.AttributeIndexerConfig{
		Catalog: catalogRepo,
		Cache:   attributeCache,
		TTL:     cfg.Sync.AttributeCacheTTL,
		Logger:  log,
	})
	mapper := appintegration.NewListingMapper(appintegration.ListingMapperConfig{
		Catalog:      catalogRepo,
		Indexer:      indexer,
		Images:       ecommerce.NewStorefrontImageURLs(cfg.Sync.ImageBaseURL),
		Categories:   categoryMapRepo,
		Shipping:     shippingMapRepo,
		Config:       configRepo,
		SecureDomain: cfg.Sync.ShopSecureDomain,
		Logger:       log,
	})
	productSync := appintegration.NewProductSyncService(appintegration.ProductSyncServiceConfig{
		Catalog:    catalogRepo,
		Links:      productLinkRepo,
		Builder:    mapper,
		Client:     client,
		LanguageID: cfg.Sync.LanguageID,
		Journal:    journal,
		Metrics:    otel.metrics,
		Logger:     log,
	})

	carriers := appintegration.NewCarrierResolver(appintegration.CarrierResolverConfig{
		Carriers: carrierRepo,
		Mappings: shippingMapRepo,
		Config:   configRepo,
		Journal:  journal,
		Logger:   log,
	})
	materializer := appintegration.NewOrderMaterializer(appintegration.OrderMaterializerConfig{
		Carriers:  carriers,
		Customers: customerRepo,
		Carts:     cartRepo,
		Payments:  orderRepo,
		Orders:    orderRepo,
		Config:    configRepo,
		Statuses:  statuses,
		Journal:   journal,
		Logger:    log,
	})
	dispatcher := appintegration.NewEventDispatcher(appintegration.EventDispatcherConfig{
		Client:   client,
		Links:    orderLinkRepo,
		Orders:   orderRepo,
		Creator:  materializer,
		Statuses: statuses,
		Journal:  journal,
		Metrics:  otel.metrics,
		Logger:   log,
	})
	poller := appintegration.NewInboxPoller(appintegration.InboxPollerConfig{
		Client:     client,
		Dispatcher: dispatcher,
		Journal:    journal,
		Metrics:    otel.metrics,
		Logger:     log,
	})
	dashboard := appintegration.NewDashboardService(appintegration.DashboardServiceConfig{
		Catalog:      catalogRepo,
		ProductLinks: productLinkRepo,
		OrderLinks:   orderLinkRepo,
		Orders:       orderRepo,
		Logs:         syncLogRepo,
	})

	// Scheduler: periodic runs plus the lock shared with the cron endpoints
	schedulerConfig := scheduler.Config{
		Enabled:     cfg.Scheduler.Enabled && configured,
		JobTimeout:  cfg.Scheduler.JobTimeout,
		HistorySize: cfg.Scheduler.HistorySize,
	}
	syncScheduler, err := scheduler.New(schedulerConfig, runLock, log, scheduler.WithMetrics(otel.metrics))
	if err != nil {
		log.Fatal("Failed to create scheduler", zap.Error(err))
	}
	if err := scheduler.RegisterSyncJobs(syncScheduler, poller, productSync,
		cfg.Scheduler.InboxInterval, cfg.Scheduler.ProductInterval,
		cfg.Sync.InboxLimit, cfg.Sync.InboxMaxBatches, cfg.Sync.ProductBatchSize,
	); err != nil {
		log.Fatal("Failed to register sync jobs", zap.Error(err))
	}
	schedulerCtx, stopScheduler := context.WithCancel(ctx)
	defer stopScheduler()
	if err := syncScheduler.Start(schedulerCtx); err != nil {
		log.Fatal("Failed to start scheduler", zap.Error(err))
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := router.NewEngine(router.EngineConfig{
		Logger: log,
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		},
		Security:          middleware.SecurityConfig{HSTSEnabled: cfg.App.Env == "production", HSTSMaxAge: 31536000},
		MaxBodySize:       cfg.HTTP.MaxBodySize,
		RateLimitEnabled:  cfg.HTTP.RateLimitEnabled,
		RateLimitRequests: cfg.HTTP.RateLimitRequests,
		RateLimitWindow:   cfg.HTTP.RateLimitWindow,
	})
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	var schedulerState handler.SchedulerState
	if schedulerConfig.Enabled {
		schedulerState = syncScheduler
	}
	handlers := router.Handlers{
		Cron: handler.NewCronHandler(handler.CronHandlerConfig{
			Poller:     poller,
			Products:   productSync,
			PriceLists: client,
			Guard:      syncScheduler,
			Defaults: handler.CronDefaults{
				InboxLimit:   cfg.Sync.InboxLimit,
				InboxBatches: cfg.Sync.InboxMaxBatches,
				ProductBatch: cfg.Sync.ProductBatchSize,
			},
		}),
		Dashboard: handler.NewDashboardHandler(dashboard, syncScheduler),
		System:    handler.NewSystemHandler(db, schedulerState),
	}

	r := router.NewRouter(engine)
	for _, group := range router.Groups(handlers, cfg.Erli.CronToken) {
		r.Register(group)
	}
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	stopScheduler()
	if err := syncScheduler.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping scheduler", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// newMarketplaceClient builds the ERLI client. Without an API key the server
// still starts with a client whose calls fail with ErrMarketplaceNotConfigured,
// and periodic runs stay off.
func newMarketplaceClient(cfg config.ErliConfig, log *zap.Logger) (integration.MarketplaceClient, bool, error) {
	var erliConfig *ecommerce.ErliConfig
	if cfg.UseSandbox {
		erliConfig = ecommerce.NewSandboxErliConfig(cfg.APIKey)
	} else {
		erliConfig = ecommerce.NewErliConfig(cfg.APIKey)
	}
	if cfg.BaseURL != "" {
		erliConfig.APIBaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		erliConfig.Timeout = cfg.Timeout
	}
	if cfg.RateBurst > 0 {
		erliConfig.RateBurst = cfg.RateBurst
	}
	if cfg.UserAgent != "" {
		erliConfig.UserAgent = cfg.UserAgent
	}
	if cfg.MaxResponseMiB > 0 {
		erliConfig.MaxResponseBytes = int64(cfg.MaxResponseMiB) << 20
	}
	erliConfig.RateLimit = cfg.RateLimit

	client, err := ecommerce.NewErliClient(erliConfig, ecommerce.WithClientLogger(log))
	if errors.Is(err, integration.ErrMarketplaceNotConfigured) {
		log.Warn("ERLI API key is not set, marketplace calls are disabled")
		return ecommerce.DisabledClient{}, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	log.Info("ERLI client ready",
		zap.String("base_url", erliConfig.APIBaseURL),
		zap.Bool("sandbox", erliConfig.IsSandbox),
	)
	return client, true, nil
}

func migrate(db *persistence.Database, log *zap.Logger) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	m, err := migration.NewFromFS(sqlDB, migrations.FS, log)
	if err != nil {
		return err
	}
	return m.Up()
}

type telemetryStack struct {
	log     *zap.Logger
	metrics *telemetry.SyncMetrics
	tracer  *telemetry.TracerProvider
	meter   *telemetry.MeterProvider
	logs    *telemetry.LoggerProvider
}

func setupTelemetry(ctx context.Context, cfg *config.Config, log *zap.Logger) (*telemetryStack, error) {
	tc := cfg.Telemetry
	stack := &telemetryStack{log: log}

	var err error
	stack.tracer, err = telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           tc.Enabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		SamplingRatio:     tc.SamplingRatio,
		ServiceName:       tc.ServiceName,
		ServiceVersion:    "1.0.0",
		Insecure:          tc.Insecure,
	}, log)
	if err != nil {
		return nil, err
	}

	stack.meter, err = telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           tc.Enabled && tc.MetricsEnabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		ExportInterval:    tc.MetricsInterval,
		ServiceName:       tc.ServiceName,
		Insecure:          tc.Insecure,
	}, log)
	if err != nil {
		return nil, err
	}
	stack.metrics, err = telemetry.NewSyncMetrics(stack.meter.Meter("erli-connector/sync"))
	if err != nil {
		return nil, err
	}

	stack.logs, err = telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           tc.Enabled && tc.LogsEnabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		ServiceName:       tc.ServiceName,
		Insecure:          tc.Insecure,
	}, log)
	if err != nil {
		return nil, err
	}
	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	stack.log = telemetry.BridgeLogger(log, tc.ServiceName, stack.logs, level)

	return stack, nil
}

func (s *telemetryStack) shutdown(log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.logs.Shutdown(ctx); err != nil {
		log.Error("Error shutting down log provider", zap.Error(err))
	}
	if err := s.meter.Shutdown(ctx); err != nil {
		log.Error("Error shutting down meter provider", zap.Error(err))
	}
	if err := s.tracer.Shutdown(ctx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}
}
