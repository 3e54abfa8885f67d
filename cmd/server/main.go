package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/gridquote/pricing-go/internal/api"
	"github.com/gridquote/pricing-go/internal/api/handlers"
	"github.com/gridquote/pricing-go/internal/config"
	"github.com/gridquote/pricing-go/internal/database"
	"github.com/gridquote/pricing-go/internal/observability"
	"github.com/gridquote/pricing-go/internal/services"
)

func main() {
	seed := flag.Bool("seed", false, "seed reference data sources and policies, then exit")
	flag.Parse()

	if err := run(*seed); err != nil {
		fmt.Fprintf(os.Stderr, "Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(seed bool) error {
	// Local development overrides; missing .env is fine
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	ctx := context.Background()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Telemetry, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.WithError(err).Warn("Failed to shut down tracing")
		}
	}()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if seed {
		return runSeeder(ctx, db, logger)
	}

	// Initialize Redis
	redis, err := database.NewRedisConnection(cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer redis.Close()

	// Repositories
	sourceRepo := database.NewSourceRepository(db.Pool)
	observationRepo := database.NewObservationRepository(db.Pool)
	policyRepo := database.NewPolicyRepository(db.Pool)

	// Services
	consensus := services.NewConsensusService(policyRepo, observationRepo, cfg.Pricing.WindowDays, logger)
	monitor := services.NewResourceMonitor(logger)

	// Setup Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))

	api.SetupRoutes(router, db, redis, api.Handlers{
		Pricing: handlers.NewPricingHandler(consensus, redis, cfg.EstimateCacheTTL(), logger),
		Ingest:  handlers.NewIngestHandler(observationRepo, sourceRepo, logger),
		Admin:   handlers.NewAdminHandler(policyRepo, sourceRepo, redis, logger),
		System:  handlers.NewSystemHandler(monitor),
	}, cfg.Admin.APIKey)

	// Create HTTP server with security timeouts
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       15 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.WithFields(logrus.Fields{
			"port":        cfg.Server.Port,
			"environment": cfg.Environment,
		}).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	// Give outstanding requests a deadline for completion
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited gracefully")
	return nil
}
