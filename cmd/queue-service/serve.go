package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/cuongbtq/recon-queue/internal/api/handler"
	"github.com/cuongbtq/recon-queue/internal/api/router"
	"github.com/cuongbtq/recon-queue/internal/catalog"
	"github.com/cuongbtq/recon-queue/internal/config"
	"github.com/cuongbtq/recon-queue/internal/events"
	"github.com/cuongbtq/recon-queue/internal/queue/backend"
	"github.com/cuongbtq/recon-queue/internal/queue/controller"
	"github.com/cuongbtq/recon-queue/internal/queue/executor"
	"github.com/cuongbtq/recon-queue/internal/queue/store"
	"github.com/cuongbtq/recon-queue/internal/queue/validator"
	"github.com/gin-gonic/gin"
)

func runServe(ctx context.Context, flagConfigPath string) error {
	// Load configuration
	cfg, err := loadConfig(flagConfigPath)
	if err != nil {
		return err
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting queue service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	cat := catalog.Default()
	if err := cat.Validate(); err != nil {
		return fmt.Errorf("invalid collector catalog: %w", err)
	}

	// Initialize storage
	st, err := openStorage(ctx, &cfg.Storage, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer st.close()

	appLogger.Info("Storage ready", slog.String("driver", cfg.Storage.Driver))

	// Initialize event publisher
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.RabbitMQ.Enabled {
		rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		defer rabbitClient.Close()

		publisher = events.NewAMQPPublisher(rabbitClient)
		appLogger.Info("RabbitMQ connection established")
	}

	// Initialize backend client
	backendClient, err := backend.NewClient(backend.Config{
		BaseURL: cfg.Backend.BaseURL,
		APIKey:  cfg.Backend.APIKey,
		Timeout: cfg.Backend.Timeout,
	}, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize backend client: %w", err)
	}
	if cfg.Backend.APIKey == "" {
		appLogger.Warn("Backend API key is empty", slog.String("env", config.APIKeyEnv))
	}

	// Open one queue per variant; recovery runs before the server accepts input
	queues := make(map[string]*controller.Controller)
	var executors []*executor.Executor

	for _, variant := range catalog.Variants() {
		variantLogger := appLogger.With(slog.String("variant", variant.Name)).Logger

		s, err := store.Open(ctx, st.slot(variant.SlotKey), variantLogger)
		if err != nil {
			return fmt.Errorf("failed to open %s queue: %w", variant.Name, err)
		}

		emitter := events.NewEmitter(publisher, variant.Name, variantLogger)

		exec := executor.New(&executor.Config{
			Store:                s,
			Backend:              backendClient,
			Endpoints:            cat,
			Domain:               variant.Domain,
			Emitter:              emitter,
			Logger:               variantLogger,
			NewTicker:            executor.IntervalTickers(cfg.Executor.TickInterval),
			MaxSimulatedProgress: cfg.Executor.MaxSimulatedProgress,
		})
		executors = append(executors, exec)

		queues[variant.Name] = controller.New(&controller.Config{
			Variant:   variant,
			Catalog:   cat,
			Store:     s,
			Executor:  exec,
			Validator: validator.New(cat, loc),
			Emitter:   emitter,
			Logger:    appLogger.Logger,
		})
	}

	// Initialize router
	r := initRouter(cfg, appLogger.Logger, queues, cat, st)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	appLogger.Info("Starting HTTP server",
		slog.String("address", addr),
		slog.Duration("read_timeout", cfg.Server.ReadTimeout),
		slog.Duration("write_timeout", cfg.Server.WriteTimeout),
	)

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serveErr:
		if err != nil {
			appLogger.Error("Server failed", slog.Any("error", err))
			return err
		}
	case <-sigCtx.Done():
	}

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
	}

	// Jobs still in flight after the timeout stay running and are recovered on the next start
	for _, exec := range executors {
		if err := exec.Shutdown(shutdownCtx); err != nil {
			appLogger.Warn("Executor shutdown incomplete", slog.Any("error", err))
		}
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(cfg *config.Config, logger *slog.Logger, queues map[string]*controller.Controller, cat *catalog.Catalog, st *storage) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize handler dependencies
	handlerDeps := &handler.Dependencies{
		Logger:         logger,
		Queues:         queues,
		Catalog:        cat,
		HealthCheck:    st.healthCheck,
		ServiceName:    cfg.App.Name,
		Version:        cfg.App.Version,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}

	// Setup router
	return router.SetupRouter(handlerDeps)
}
