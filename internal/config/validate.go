package config

import (
	"fmt"
	"net"
	"strings"
)

// ValidationError represents a configuration validation error with context.
type ValidationError struct {
	Field   string
	Message string
	Hint    string
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (hint: %s)", e.Field, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Field   string
	Message string
	Hint    string
}

// ValidationResult contains the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Error returns a combined error message if there are validation errors.
func (r *ValidationResult) Error() string {
	if !r.HasErrors() {
		return ""
	}
	var msgs []string
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for errors and returns validation results.
// It returns both errors (fatal) and warnings (non-fatal issues).
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendMySQL:
		c.Database.validate(result)
	default:
		result.Errors = append(result.Errors, ValidationError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("unknown backend %q", c.Storage.Backend),
			Hint:    "use memory or mysql",
		})
	}

	c.Observability.validate(result)

	return result
}

func (d *DatabaseConfig) validate(result *ValidationResult) {
	if strings.TrimSpace(d.ConnectionString) != "" {
		if _, err := d.DSN(); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "database.dsn",
				Message: err.Error(),
			})
		}
		if d.Host != "" && d.Host != "localhost" {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Field:   "database.host",
				Message: "ignored because database.dsn is set",
			})
		}
	} else {
		if d.Port < 1 || d.Port > 65535 {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "database.port",
				Message: fmt.Sprintf("must be between 1 and 65535, got %d", d.Port),
			})
		}
		if strings.TrimSpace(d.Host) == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "database.host",
				Message: "cannot be empty",
			})
		} else if strings.ContainsAny(d.Host, "/()") {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "database.host",
				Message: fmt.Sprintf("invalid host %q", d.Host),
				Hint:    "use database.dsn for socket connections",
			})
		}
		if strings.TrimSpace(d.Database) == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "database.database",
				Message: "cannot be empty",
			})
		}
	}

	if d.Pool.MaxOpen < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.pool.max_open",
			Message: "cannot be negative",
		})
	}
	if d.Pool.MaxIdle < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.pool.max_idle",
			Message: "cannot be negative",
		})
	}
	if d.Pool.MaxOpen > 0 && d.Pool.MaxIdle > d.Pool.MaxOpen {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "database.pool.max_idle",
			Message: "exceeds max_open and will be capped",
		})
	}
}

var (
	validLogLevels   = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	validLogFormats  = map[string]bool{"json": true, "text": true}
	validProtocols   = map[string]bool{"grpc": true, "http/protobuf": true}
	validCompression = map[string]bool{"": true, "none": true, "gzip": true}
)

func (o *ObservabilityConfig) validate(result *ValidationResult) {
	if !validLogLevels[strings.ToLower(o.Logging.Level)] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.logging.level",
			Message: fmt.Sprintf("invalid log level %q", o.Logging.Level),
			Hint:    "use debug, info, warn, or error",
		})
	}
	if !validLogFormats[strings.ToLower(o.Logging.Format)] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.logging.format",
			Message: fmt.Sprintf("invalid log format %q", o.Logging.Format),
			Hint:    "use json or text",
		})
	}
	if o.TraceSampleRatio < 0 || o.TraceSampleRatio > 1 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.trace_sample_ratio",
			Message: fmt.Sprintf("must be between 0.0 and 1.0, got %v", o.TraceSampleRatio),
		})
	}
	if o.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(o.MetricsAddr); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "observability.metrics_addr",
				Message: err.Error(),
				Hint:    "use host:port or :port",
			})
		}
		if !o.MetricsEnabled {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Field:   "observability.metrics_addr",
				Message: "set but metrics_enabled is false",
			})
		}
	}

	if !validProtocols[o.OTLP.Protocol] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.otlp.protocol",
			Message: fmt.Sprintf("invalid protocol %q", o.OTLP.Protocol),
			Hint:    "use grpc or http/protobuf",
		})
	}
	if !validCompression[o.OTLP.Compression] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.otlp.compression",
			Message: fmt.Sprintf("invalid compression %q", o.OTLP.Compression),
			Hint:    "use none or gzip",
		})
	}
	exporting := o.TracingEnabled || o.Logging.ExportsEnabled
	if exporting && strings.TrimSpace(o.OTLP.Endpoint) == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.otlp.endpoint",
			Message: "required when tracing or log export is enabled",
		})
	}
}
