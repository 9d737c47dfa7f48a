package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535

	// PathEnv overrides DefaultPath.
	PathEnv = "RECON_QUEUE_CONFIG_PATH"
	// DefaultPath is used when neither a flag nor PathEnv names a file.
	DefaultPath = "configs/queue-service/config.yaml"
	// APIKeyEnv overrides backend.api_key.
	APIKeyEnv = "RECON_API_KEY"
)

// Storage drivers.
const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	App      AppConfig      `yaml:"app"`
	Logging  LoggingConfig  `yaml:"logging"`
	Storage  StorageConfig  `yaml:"storage"`
	Backend  BackendConfig  `yaml:"backend"`
	Executor ExecutorConfig `yaml:"executor"`
	Business BusinessConfig `yaml:"business"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableSource bool   `yaml:"enable_source"`
	TimeFormat   string `yaml:"time_format"`
}

// StorageConfig selects where each queue variant's slot lives
type StorageConfig struct {
	Driver     string         `yaml:"driver"`
	DataDir    string         `yaml:"data_dir"`
	SQLitePath string         `yaml:"sqlite_path"`
	Database   DatabaseConfig `yaml:"database"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// BackendConfig locates the remote execution service
type BackendConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"` // 0 waits indefinitely
}

// ExecutorConfig tunes simulated progress
type ExecutorConfig struct {
	TickInterval         time.Duration `yaml:"tick_interval"`
	MaxSimulatedProgress int           `yaml:"max_simulated_progress"`
}

// BusinessConfig holds calendar settings
type BusinessConfig struct {
	TimeZone string `yaml:"time_zone"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange configuration
type RabbitMQConfig struct {
	Enabled    bool             `yaml:"enabled"`
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// ResolvePath picks the config file: flag value, then PathEnv, then
// DefaultPath.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if p := os.Getenv(PathEnv); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if key := os.Getenv(APIKeyEnv); key != "" {
		config.Backend.APIKey = key
	}

	return config, nil
}

// Default returns the values used for keys a file leaves out.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		App: AppConfig{
			Name:        "recon-queue-service",
			Environment: "development",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stdout",
		},
		Storage: StorageConfig{
			Driver:     DriverFile,
			DataDir:    "data",
			SQLitePath: "data/queues.db",
		},
		Executor: ExecutorConfig{
			TickInterval:         800 * time.Millisecond,
			MaxSimulatedProgress: 70,
		},
		Business: BusinessConfig{
			TimeZone: "America/Lima",
		},
		RabbitMQ: RabbitMQConfig{
			Port: 5672,
			Exchange: ExchangeConfig{
				Name:    "recon_queue_events",
				Type:    "topic",
				Durable: true,
			},
			Connection: ConnectionConfig{
				RetryAttempts: 5,
				RetryInterval: 2 * time.Second,
				Heartbeat:     10 * time.Second,
			},
			Publish: PublishConfig{
				RetryAttempts:     3,
				RetryInterval:     100 * time.Millisecond,
				BackoffMultiplier: 2,
			},
		},
	}
}

// Location loads the business time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Business.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid business time zone %q: %w", c.Business.TimeZone, err)
	}
	return loc, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		errs = append(errs, fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort))
	}

	switch c.Storage.Driver {
	case DriverFile:
		if c.Storage.DataDir == "" {
			errs = append(errs, errors.New("storage data_dir is required for the file driver"))
		}
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("storage sqlite_path is required for the sqlite driver"))
		}
	case DriverPostgres:
		db := c.Storage.Database
		if db.Host == "" {
			errs = append(errs, errors.New("database host is required"))
		}
		if db.Port < MinPort || db.Port > MaxPort {
			errs = append(errs, fmt.Errorf("invalid database port: %d (must be between %d and %d)", db.Port, MinPort, MaxPort))
		}
		if db.Database == "" {
			errs = append(errs, errors.New("database name is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q (want %s, %s or %s)", c.Storage.Driver, DriverFile, DriverSQLite, DriverPostgres))
	}

	if u, err := url.Parse(c.Backend.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("backend base_url must be an absolute http(s) URL, got %q", c.Backend.BaseURL))
	}
	if c.Backend.Timeout < 0 {
		errs = append(errs, errors.New("backend timeout must not be negative"))
	}

	if c.Executor.TickInterval <= 0 {
		errs = append(errs, errors.New("executor tick_interval must be greater than 0"))
	}
	if c.Executor.MaxSimulatedProgress <= 0 || c.Executor.MaxSimulatedProgress >= 100 {
		errs = append(errs, fmt.Errorf("executor max_simulated_progress must be between 1 and 99, got %d", c.Executor.MaxSimulatedProgress))
	}

	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}

	if c.RabbitMQ.Enabled {
		if c.RabbitMQ.Host == "" {
			errs = append(errs, errors.New("rabbitmq host is required"))
		}
		if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
			errs = append(errs, fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort))
		}
		if c.RabbitMQ.Exchange.Name == "" {
			errs = append(errs, errors.New("rabbitmq exchange name is required"))
		}
	}

	return errors.Join(errs...)
}
