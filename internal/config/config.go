// Package config loads configuration from files, env vars, and flags, and validates it.
package config

import (
	"time"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendMySQL  = "mysql"
)

// Config holds the application configuration.
type Config struct {
	Storage       StorageConfig       `mapstructure:"storage"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// StorageConfig selects the storage collaborator.
type StorageConfig struct {
	Backend string `mapstructure:"backend"` // memory, mysql
}

// DatabaseConfig holds connection parameters for the mysql backend.
type DatabaseConfig struct {
	ConnectionString string     `mapstructure:"dsn"`
	Host             string     `mapstructure:"host"`
	Port             int        `mapstructure:"port"`
	User             string     `mapstructure:"user"`
	Password         string     `mapstructure:"password"`
	PasswordFile     string     `mapstructure:"password_file"`
	PasswordPrompt   bool       `mapstructure:"password_prompt"`
	Database         string     `mapstructure:"database"`
	Pool             PoolConfig `mapstructure:"pool"`
	// ConnectionTimeout bounds how long startup waits for the database.
	ConnectionTimeout       time.Duration `mapstructure:"connection_timeout"`
	ConnectionRetryInterval time.Duration `mapstructure:"connection_retry_interval"`
}

// PoolConfig holds sql.DB pool settings.
type PoolConfig struct {
	MaxOpen     int           `mapstructure:"max_open"`
	MaxIdle     int           `mapstructure:"max_idle"`
	MaxLifetime time.Duration `mapstructure:"max_lifetime"`
}

// LoggingConfig holds logging parameters.
type LoggingConfig struct {
	Level          string `mapstructure:"level"`           // debug, info, warn, error
	Format         string `mapstructure:"format"`          // json, text
	ExportsEnabled bool   `mapstructure:"exports_enabled"` // Enable OTLP log export
}

// ObservabilityConfig holds observability parameters.
type ObservabilityConfig struct {
	ServiceName      string        `mapstructure:"service_name"`
	ServiceVersion   string        `mapstructure:"service_version"`
	Environment      string        `mapstructure:"environment"`
	MetricsEnabled   bool          `mapstructure:"metrics_enabled"`
	MetricsAddr      string        `mapstructure:"metrics_addr"`
	TracingEnabled   bool          `mapstructure:"tracing_enabled"`
	TraceSampleRatio float64       `mapstructure:"trace_sample_ratio"`
	Logging          LoggingConfig `mapstructure:"logging"`
	OTLP             OTLPConfig    `mapstructure:"otlp"`
}

// OTLPConfig holds OTLP exporter configuration
type OTLPConfig struct {
	Endpoint    string            `mapstructure:"endpoint"`
	Protocol    string            `mapstructure:"protocol"` // "grpc", "http/protobuf"
	Insecure    bool              `mapstructure:"insecure"`
	TLSCertFile string            `mapstructure:"tls_cert_file"`
	Headers     map[string]string `mapstructure:"headers"`
	Timeout     time.Duration     `mapstructure:"timeout"`
	Compression string            `mapstructure:"compression"` // "none", "gzip"
}
