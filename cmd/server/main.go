package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appeinvoice "github.com/einvoice/backend/internal/application/einvoice"
	"github.com/einvoice/backend/internal/infrastructure/cache"
	"github.com/einvoice/backend/internal/infrastructure/config"
	"github.com/einvoice/backend/internal/infrastructure/event"
	"github.com/einvoice/backend/internal/infrastructure/logger"
	"github.com/einvoice/backend/internal/infrastructure/persistence"
	"github.com/einvoice/backend/internal/infrastructure/provider"
	"github.com/einvoice/backend/internal/infrastructure/scheduler"
	"github.com/einvoice/backend/internal/interfaces/http/handler"
	"github.com/einvoice/backend/internal/interfaces/http/middleware"
	"github.com/einvoice/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

//	@title			E-Invoice Exchange API
//	@version		1.0
//	@description	Asynchronous invoice submission and reconciliation service

//	@host		localhost:8080
//	@BasePath	/api/v1

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger
	appLogger, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer func() { _ = logger.Sync(appLogger) }()

	appLogger.Info("starting server",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port))

	// Initialize database with a zap-backed GORM logger
	gormLogger := logger.NewGormLogger(appLogger, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLogger)
	if err != nil {
		appLogger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			appLogger.Error("failed to close database", zap.Error(err))
		}
	}()

	// Provider session cache: Redis when reachable, in-memory otherwise
	var sessions cache.SessionCache
	redisSessions, err := cache.NewRedisSessionCache(cache.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		appLogger.Warn("redis unavailable, using in-memory session cache", zap.Error(err))
		sessions = cache.NewInMemorySessionCache()
	} else {
		sessions = redisSessions
		defer func() {
			if err := redisSessions.Close(); err != nil {
				appLogger.Error("failed to close redis client", zap.Error(err))
			}
		}()
	}

	// Event bus for domain events
	eventBus := event.NewInMemoryEventBus(appLogger)
	if err := eventBus.Start(context.Background()); err != nil {
		appLogger.Fatal("failed to start event bus", zap.Error(err))
	}

	// Repositories
	documentRepo := persistence.NewGormDocumentRepository(db.DB)
	payloadRepo := persistence.NewGormPayloadRepository(db.DB)

	// Exchange provider adapter
	var defaultAccount *provider.VeribanConfig
	if cfg.Provider.Username != "" && cfg.Provider.Password != "" && cfg.Provider.ServiceURL != "" {
		defaultAccount = provider.NewVeribanConfig(cfg.Provider.Username, cfg.Provider.Password, cfg.Provider.ServiceURL)
		defaultAccount.CustomerAlias = cfg.Provider.CustomerAlias
		defaultAccount.IsDirectSend = cfg.Provider.DirectSend
		defaultAccount.TestMode = cfg.Provider.TestMode
	} else {
		appLogger.Warn("no default provider account configured, tenants need their own credentials")
	}
	exchangeProvider, err := provider.NewVeribanAdapter(provider.VeribanAdapterConfig{
		DefaultConfig:  defaultAccount,
		Sessions:       sessions,
		Payloads:       payloadRepo,
		RequestTimeout: cfg.Provider.RequestTimeout,
		SessionTTL:     cfg.Provider.SessionTTL,
		Logger:         appLogger,
	})
	if err != nil {
		appLogger.Fatal("failed to initialize exchange provider", zap.Error(err))
	}

	// Application services
	gate := appeinvoice.NewConfirmationGate(appLogger)
	poller := appeinvoice.NewStatusPoller(appeinvoice.StatusPollerConfig{
		Repo:           documentRepo,
		Provider:       exchangeProvider,
		EventPublisher: eventBus,
		Logger:         appLogger,
		BaseDelay:      cfg.Poller.BaseDelay,
		MaxDelay:       cfg.Poller.MaxDelay,
		MaxAttempts:    cfg.Poller.MaxAttempts,
		CheckTimeout:   cfg.Provider.RequestTimeout,
	})
	submissionService := appeinvoice.NewSubmissionService(appeinvoice.SubmissionServiceConfig{
		Repo:             documentRepo,
		Provider:         exchangeProvider,
		Directory:        exchangeProvider,
		EventPublisher:   eventBus,
		Gate:             gate,
		Poller:           poller,
		Logger:           appLogger,
		SubmitTimeout:    cfg.Provider.SubmitTimeout,
		InitialPollDelay: cfg.Poller.InitialDelay,
	})
	documentService := appeinvoice.NewDocumentService(documentRepo, payloadRepo, appLogger)
	reconcileService := appeinvoice.NewBulkReconcileService(appeinvoice.BulkReconcileServiceConfig{
		Repo:           documentRepo,
		Provider:       exchangeProvider,
		EventPublisher: eventBus,
		Logger:         appLogger,
		Limit:          cfg.Reconciler.Limit,
		CheckTimeout:   cfg.Provider.RequestTimeout,
	})

	// Periodic reconciliation sweep
	reconcileScheduler, err := scheduler.NewReconcileScheduler(scheduler.ReconcileSchedulerConfig{
		Enabled:     cfg.Reconciler.Enabled,
		Interval:    cfg.Reconciler.Interval,
		PassTimeout: 5 * time.Minute,
	}, reconcileService, appLogger)
	if err != nil {
		appLogger.Fatal("failed to initialize reconcile scheduler", zap.Error(err))
	}
	if err := reconcileScheduler.Start(context.Background()); err != nil {
		appLogger.Fatal("failed to start reconcile scheduler", zap.Error(err))
	}

	// HTTP engine and middleware
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			appLogger.Fatal("failed to set trusted proxies", zap.Error(err))
		}
	}

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders

	tenantConfig := middleware.DefaultTenantConfig()
	tenantConfig.Logger = appLogger

	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(appLogger),
		logger.Recovery(appLogger),
		middleware.Secure(),
		middleware.CORSWithConfig(corsConfig),
		middleware.BodyLimit(10<<20),
		middleware.TenantMiddlewareWithConfig(tenantConfig),
	)

	engine.GET("/health", healthHandler(db))

	// Routes
	r := router.NewRouter(engine)
	r.Register(handler.NewDocumentHandler(documentService, submissionService, reconcileService)).
		Register(handler.NewSystemHandler())
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
		appLogger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := reconcileScheduler.Stop(shutdownCtx); err != nil {
		appLogger.Error("failed to stop reconcile scheduler", zap.Error(err))
	}
	poller.Shutdown()
	if err := eventBus.Stop(shutdownCtx); err != nil {
		appLogger.Error("failed to stop event bus", zap.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Fatal("server forced to shutdown", zap.Error(err))
	}

	appLogger.Info("server exited")
}

// healthHandler reports liveness including database connectivity
func healthHandler(db *persistence.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database unreachable",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}
