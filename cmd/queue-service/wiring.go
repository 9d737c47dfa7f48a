package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/recon-queue/internal/config"
	"github.com/cuongbtq/recon-queue/internal/queue/persistence"
	"github.com/cuongbtq/recon-queue/internal/queue/store"
	"github.com/cuongbtq/recon-queue/shared/logger"
	"github.com/cuongbtq/recon-queue/shared/postgresql"
	"github.com/cuongbtq/recon-queue/shared/rabbitmq"
	"github.com/cuongbtq/recon-queue/shared/sqlite"
)

// loadConfig resolves, loads and validates the configuration file.
func loadConfig(flagValue string) (*config.Config, error) {
	path := config.ResolvePath(flagValue)

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableSource,
		TimeFormat:   cfg.TimeFormat,
	}

	return logger.New(loggerCfg)
}

// storage hands out one persisted slot per queue variant.
type storage struct {
	slot        func(key string) store.Persister
	healthCheck func(ctx context.Context) error
	close       func() error
}

// openStorage connects the configured driver and prepares its schema.
func openStorage(ctx context.Context, cfg *config.StorageConfig, log *slog.Logger) (*storage, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		client, err := sqlite.NewClient(cfg.SQLitePath, log)
		if err != nil {
			return nil, err
		}
		if err := persistence.EnsureSchema(ctx, client.GetDB()); err != nil {
			client.Close()
			return nil, err
		}
		return &storage{
			slot: func(key string) store.Persister {
				return persistence.NewSQLSlot(client.GetDB(), key)
			},
			healthCheck: client.HealthCheck,
			close:       client.Close,
		}, nil

	case config.DriverPostgres:
		client, err := initPostgreSQL(&cfg.Database, log)
		if err != nil {
			return nil, err
		}
		if err := persistence.EnsureSchema(ctx, client.GetDB()); err != nil {
			client.Close()
			return nil, err
		}
		return &storage{
			slot: func(key string) store.Persister {
				return persistence.NewSQLSlot(client.GetDB(), key)
			},
			healthCheck: client.HealthCheck,
			close:       client.Close,
		}, nil

	default:
		log.Info("Using file storage", slog.String("data_dir", cfg.DataDir))
		return &storage{
			slot: func(key string) store.Persister {
				return persistence.NewFileSlot(cfg.DataDir, key)
			},
			close: func() error { return nil },
		}, nil
	}
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}
