// Package config provides configuration management for the citation graph service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the service reads.
const EnvPrefix = "CITEGRAPH"

// maxMatchBatchSize is the largest batch the matching service accepts.
const maxMatchBatchSize = 10

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// Config holds all configuration for the citation graph service.
type Config struct {
	// Server contains HTTP/gRPC server settings.
	Server ServerConfig `mapstructure:"server"`
	// Database contains PostgreSQL connection settings.
	Database DatabaseConfig `mapstructure:"database"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Tracing contains OpenTelemetry distributed tracing settings.
	Tracing TracingConfig `mapstructure:"tracing"`
	// Worker contains processing queue worker settings.
	Worker WorkerConfig `mapstructure:"worker"`
	// ArXiv contains e-print and metadata API settings.
	ArXiv ArXivConfig `mapstructure:"arxiv"`
	// Crossref contains citation matching service settings.
	Crossref CrossrefConfig `mapstructure:"crossref"`
	// Latex contains markup-to-plaintext conversion settings.
	Latex LatexConfig `mapstructure:"latex"`
	// Kafka contains graph event publisher settings.
	Kafka KafkaConfig `mapstructure:"kafka"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// GRPCPort is the gRPC health server port (default: 9090).
	GRPCPort int `mapstructure:"grpc_port"`
	// MetricsPort is the metrics server port (default: 9091).
	MetricsPort int `mapstructure:"metrics_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	// Host is the PostgreSQL server hostname.
	Host string `mapstructure:"host"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is loaded from CITEGRAPH_DATABASE_PASSWORD only.
	Password string `mapstructure:"-"`
	// Name is the database name.
	Name string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	SSLMode string `mapstructure:"ssl_mode"`
	// MaxConns is the maximum number of connections in the pool (default: 20).
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open (default: 2).
	MinConns int32 `mapstructure:"min_conns"`
	// MaxConnLifetime is the maximum lifetime of a connection before it's closed.
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// MaxConnIdleTime is the maximum time a connection can be idle before it's closed.
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// HealthCheckPeriod is the interval between health checks of idle connections.
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	// ConnectTimeout is the maximum time to wait for a connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// MigrationPath is the path to migration files (relative or absolute).
	MigrationPath string `mapstructure:"migration_path"`
	// MigrationAutoRun enables automatic migration on startup (default: false).
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr, file path).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
	// Namespace prefixes every metric name.
	Namespace string `mapstructure:"namespace"`
}

// TracingConfig holds tracing configuration.
type TracingConfig struct {
	// Enabled enables distributed tracing.
	Enabled bool `mapstructure:"enabled"`
	// Endpoint is the OTLP gRPC collector endpoint.
	Endpoint string `mapstructure:"endpoint"`
	// Insecure disables TLS to the collector.
	Insecure bool `mapstructure:"insecure"`
	// ServiceName is the service name for traces.
	ServiceName string `mapstructure:"service_name"`
	// Environment is recorded as deployment.environment.
	Environment string `mapstructure:"environment"`
	// SampleRate is the sampling rate (0.0 to 1.0).
	SampleRate float64 `mapstructure:"sample_rate"`
}

// WorkerConfig holds processing queue worker configuration.
type WorkerConfig struct {
	// Enabled runs the worker inside the server process.
	Enabled bool `mapstructure:"enabled"`
	// PollInterval is the fixed delay between worker cycles.
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// UnitTimeout bounds one dequeue-expand-commit unit. Zero means unbounded.
	UnitTimeout time.Duration `mapstructure:"unit_timeout"`
}

// ArXivConfig holds arXiv client configuration.
type ArXivConfig struct {
	// BaseURL serves e-print archives.
	BaseURL string `mapstructure:"base_url"`
	// ExportURL serves the Atom metadata API.
	ExportURL string `mapstructure:"export_url"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// Burst is the rate limiter burst size.
	Burst int `mapstructure:"burst"`
	// Timeout is the per-request timeout.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxRetries is the retry count for 429, 5xx and network errors.
	MaxRetries int `mapstructure:"max_retries"`
	// MaxArchiveSize bounds the decompressed e-print size in bytes.
	MaxArchiveSize int64 `mapstructure:"max_archive_size"`
}

// CrossrefConfig holds citation matching client configuration.
type CrossrefConfig struct {
	// MatchURL is the links endpoint.
	MatchURL string `mapstructure:"match_url"`
	// Mailto is loaded from CITEGRAPH_CROSSREF_MAILTO only.
	Mailto string `mapstructure:"-"`
	// BatchSize is the number of citations per request (1..10).
	BatchSize int `mapstructure:"batch_size"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// Timeout is the per-request timeout.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxRetries is the retry count for 429, 5xx and network errors.
	MaxRetries int `mapstructure:"max_retries"`
	// Breaker configures the circuit breaker in front of the service.
	Breaker BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig holds circuit breaker thresholds.
type BreakerConfig struct {
	// MaxRequests is the number of probes allowed while half-open.
	MaxRequests uint32 `mapstructure:"max_requests"`
	// Interval clears failure counts while closed.
	Interval time.Duration `mapstructure:"interval"`
	// Timeout is the open-state duration before probing.
	Timeout time.Duration `mapstructure:"timeout"`
	// FailureThreshold is the failure ratio that opens the breaker.
	FailureThreshold float64 `mapstructure:"failure_threshold"`
	// MinRequests is the sample size required before tripping.
	MinRequests uint32 `mapstructure:"min_requests"`
}

// LatexConfig holds markup stripping configuration.
type LatexConfig struct {
	// Command is the external converter executable.
	Command string `mapstructure:"command"`
	// Args are passed to Command.
	Args []string `mapstructure:"args"`
	// Timeout bounds one conversion.
	Timeout time.Duration `mapstructure:"timeout"`
	// FallbackNative uses the built-in stripper when Command is missing.
	FallbackNative bool `mapstructure:"fallback_native"`
}

// KafkaConfig holds graph event publisher configuration.
type KafkaConfig struct {
	// Enabled turns on event publishing.
	Enabled bool `mapstructure:"enabled"`
	// Brokers is the list of Kafka broker addresses.
	Brokers []string `mapstructure:"brokers"`
	// Topic receives graph events.
	Topic string `mapstructure:"topic"`
	// BatchSize is the writer batch size.
	BatchSize int `mapstructure:"batch_size"`
	// BatchTimeout flushes incomplete batches.
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	// IngestTopic carries paper submission requests. Empty disables the listener.
	IngestTopic string `mapstructure:"ingest_topic"`
	// GroupID is the consumer group of the ingest listener.
	GroupID string `mapstructure:"group_id"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// GRPCAddress returns the gRPC server address.
func (c *ServerConfig) GRPCAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.GRPCPort)
}

// MetricsAddress returns the metrics server address.
func (c *ServerConfig) MetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.MetricsPort)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/citation-graph-service")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
// These fields are tagged with mapstructure:"-" to prevent loading from config files.
func loadSecrets(cfg *Config) {
	cfg.Database.Password = os.Getenv(EnvPrefix + "_DATABASE_PASSWORD")
	cfg.Crossref.Mailto = os.Getenv(EnvPrefix + "_CROSSREF_MAILTO")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.grpc_port", 9090)
	v.SetDefault("server.metrics_port", 9091)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "citegraph")
	v.SetDefault("database.name", "citation_graph")
	// Use CITEGRAPH_DATABASE_SSL_MODE=disable for local development.
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_path", "migrations")
	v.SetDefault("database.migration_auto_run", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "citegraph")

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("tracing.service_name", "citation-graph-service")
	v.SetDefault("tracing.environment", "development")
	v.SetDefault("tracing.sample_rate", 0.1)

	// Worker defaults
	v.SetDefault("worker.enabled", true)
	v.SetDefault("worker.poll_interval", "10s")
	v.SetDefault("worker.unit_timeout", "10m")

	// arXiv defaults; arXiv asks for at most one request every three seconds.
	v.SetDefault("arxiv.base_url", "http://arxiv.org")
	v.SetDefault("arxiv.export_url", "http://export.arxiv.org/api")
	v.SetDefault("arxiv.rate_limit", 1.0/3)
	v.SetDefault("arxiv.burst", 1)
	v.SetDefault("arxiv.timeout", "60s")
	v.SetDefault("arxiv.max_retries", 2)
	v.SetDefault("arxiv.max_archive_size", 64<<20)

	// Crossref defaults
	v.SetDefault("crossref.match_url", "http://search.crossref.org/links")
	v.SetDefault("crossref.batch_size", maxMatchBatchSize)
	v.SetDefault("crossref.rate_limit", 2.0)
	v.SetDefault("crossref.timeout", "30s")
	v.SetDefault("crossref.max_retries", 2)
	v.SetDefault("crossref.breaker.max_requests", 1)
	v.SetDefault("crossref.breaker.interval", "60s")
	v.SetDefault("crossref.breaker.timeout", "30s")
	v.SetDefault("crossref.breaker.failure_threshold", 0.6)
	v.SetDefault("crossref.breaker.min_requests", 3)

	// LaTeX conversion defaults
	v.SetDefault("latex.command", "delatex")
	v.SetDefault("latex.args", []string{"-s"})
	v.SetDefault("latex.timeout", "10s")
	v.SetDefault("latex.fallback_native", true)

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "events.citation_graph_service")
	v.SetDefault("kafka.batch_size", 100)
	v.SetDefault("kafka.batch_timeout", "10ms")
	v.SetDefault("kafka.ingest_topic", "")
	v.SetDefault("kafka.group_id", "citation-graph-service")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	// Validate server ports
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Server.GRPCPort <= 0 || c.Server.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.Server.GRPCPort)
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Server.MetricsPort)
	}

	// Validate database config
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.Database.MaxConns, c.Database.MinConns)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	// Validate tracing config
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return fmt.Errorf("tracing endpoint is required when tracing is enabled")
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("tracing sample rate must be between 0 and 1")
	}

	// Validate worker config
	if c.Worker.PollInterval <= 0 {
		return fmt.Errorf("worker poll_interval must be positive")
	}
	if c.Worker.UnitTimeout < 0 {
		return fmt.Errorf("worker unit_timeout must not be negative")
	}

	// Validate source clients
	if c.ArXiv.RateLimit <= 0 {
		return fmt.Errorf("arxiv rate_limit must be positive")
	}
	if c.ArXiv.MaxArchiveSize <= 0 {
		return fmt.Errorf("arxiv max_archive_size must be positive")
	}
	if c.Crossref.BatchSize < 1 || c.Crossref.BatchSize > maxMatchBatchSize {
		return fmt.Errorf("crossref batch_size must be between 1 and %d, got %d", maxMatchBatchSize, c.Crossref.BatchSize)
	}
	if c.Crossref.Breaker.FailureThreshold < 0 || c.Crossref.Breaker.FailureThreshold > 1 {
		return fmt.Errorf("crossref breaker failure_threshold must be between 0 and 1")
	}

	// Validate kafka config
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka brokers are required when kafka is enabled")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka topic is required when kafka is enabled")
		}
		if c.Kafka.IngestTopic != "" && c.Kafka.GroupID == "" {
			return fmt.Errorf("kafka group id is required when an ingest topic is set")
		}
	}

	return nil
}
