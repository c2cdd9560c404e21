package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	billingapp "github.com/autoerp/backend/internal/application/billing"
	"github.com/autoerp/backend/internal/infrastructure/auth"
	"github.com/autoerp/backend/internal/infrastructure/cache"
	"github.com/autoerp/backend/internal/infrastructure/config"
	"github.com/autoerp/backend/internal/infrastructure/logger"
	"github.com/autoerp/backend/internal/infrastructure/persistence"
	"github.com/autoerp/backend/internal/infrastructure/telemetry"
	"github.com/autoerp/backend/internal/interfaces/http/handler"
	"github.com/autoerp/backend/internal/interfaces/http/middleware"
	"github.com/autoerp/backend/internal/interfaces/http/router"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting server",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize tracing
	ctx := context.Background()
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Warn("Failed to shut down tracer provider", zap.Error(err))
		}
	}()

	// Connect to the database with a zap-backed GORM logger
	gormLogger := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLogger)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Warn("Failed to close database", zap.Error(err))
		}
	}()

	// Repositories
	companyRepo := persistence.NewGormCompanyRepository(db.DB)
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	allocationRepo := persistence.NewGormPaymentAllocationRepository(db.DB)
	toleranceRepo := persistence.NewGormToleranceSettingRepository(db.DB)
	creditRepo := persistence.NewGormPartnerCreditRepository(db.DB)
	uow := persistence.NewGormAllocationUnitOfWork(db.DB)

	// Tolerance cache (Redis with in-memory fallback for development)
	cacheFactory := cache.NewToleranceCacheFactory(cfg.Redis, cfg.Tolerance.CacheTTL,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	)
	toleranceCache, err := cacheFactory.CreateCache()
	if err != nil {
		log.Fatal("Failed to create tolerance cache", zap.Error(err))
	}

	// Application services
	paymentService := billingapp.NewSmartPaymentService(
		companyRepo,
		invoiceRepo,
		allocationRepo,
		toleranceRepo,
		creditRepo,
		uow,
		billingapp.WithToleranceCache(toleranceCache),
	)

	// The system-level tolerance row is mandatory; refuse to start without it.
	verifyCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := paymentService.VerifyToleranceConfiguration(verifyCtx); err != nil {
		cancel()
		log.Fatal("Tolerance configuration check failed", zap.Error(err))
	}
	cancel()

	// Auth
	jwtService := auth.NewJWTService(cfg.JWT)

	// HTTP handlers
	paymentHandler := handler.NewSmartPaymentHandler(paymentService)
	systemHandler := handler.NewSystemHandler(db)

	// Gin engine and global middleware
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()
	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Failed to set trusted proxies", zap.Error(err))
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfigFromHTTP(cfg.HTTP)))
	if cfg.Telemetry.Enabled {
		engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     true,
		}))
		engine.Use(middleware.SpanErrorMarker())
	}

	// Liveness endpoints stay outside API versioning
	engine.GET("/health", systemHandler.Health)
	engine.GET("/ping", systemHandler.Ping)

	// Versioned API routes
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	jwtCfg := middleware.DefaultJWTConfig(jwtService)
	jwtCfg.Logger = log
	r.Use(middleware.JWTAuthMiddlewareWithConfig(jwtCfg))

	smartPayment := router.NewDomainGroup("smart-payment", "/smart-payment").
		GET("/tolerance-settings", paymentHandler.GetToleranceSettings).
		PUT("/tolerance-settings", paymentHandler.UpdateToleranceSettings).
		POST("/preview-allocation", paymentHandler.PreviewAllocation).
		POST("/apply-allocation", paymentHandler.ApplyAllocation).
		GET("/allocations", paymentHandler.ListAllocations).
		POST("/allocations/:id/reverse", paymentHandler.ReverseAllocation).
		GET("/open-invoices", paymentHandler.ListOpenInvoices).
		POST("/invoices", paymentHandler.CreateInvoice).
		GET("/credits", paymentHandler.ListPartnerCredits)

	r.Register(smartPayment)
	r.Setup()

	// HTTP server
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("Shutting down server", zap.String("signal", sig.String()))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}
