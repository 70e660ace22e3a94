package config

import (
	"fmt"
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

	c.Database.validate(result)
	c.Sync.validate(result)
	c.Observability.validate(result)

	return result
}

func (d *DatabaseConfig) validate(result *ValidationResult) {
	if d.Host == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.host",
			Message: "host is required",
		})
	}
	if d.Port < 1 || d.Port > 65535 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.port",
			Message: fmt.Sprintf("port %d is out of valid range (1-65535)", d.Port),
		})
	}
	if d.Database == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.database",
			Message: "database name is required",
		})
	}

	switch d.SSLMode {
	case "", "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
	default:
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.sslmode",
			Message: fmt.Sprintf("unsupported sslmode %q", d.SSLMode),
			Hint:    "use disable, require, verify-ca or verify-full",
		})
	}

	if d.SSLMode == "disable" || d.SSLMode == "" {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "database.sslmode",
			Message: "connection is not encrypted",
			Hint:    "set database.sslmode to require or stronger in production",
		})
	}

	if d.Pool.MaxIdle > d.Pool.MaxOpen && d.Pool.MaxOpen > 0 {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "database.pool.max_idle",
			Message: "max_idle exceeds max_open and will be capped by the driver",
		})
	}
}

func (s *SyncConfig) validate(result *ValidationResult) {
	if s.EntitySchema == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "sync.entity_schema",
			Message: "entity schema is required",
		})
	}
	if s.JoinSchema == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "sync.join_schema",
			Message: "join schema is required",
		})
	}
	if s.MetaSchema == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "sync.meta_schema",
			Message: "meta schema is required",
		})
	}
	if s.BatchSize < 1 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "sync.batch_size",
			Message: "batch size must be positive",
		})
	}
	if s.EntitySchema != "" && s.EntitySchema == s.JoinSchema {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "sync.join_schema",
			Message: "join tables share a schema with entity tables",
			Hint:    "a separate join schema keeps the namespace tidy",
		})
	}
}

func (o *ObservabilityConfig) validate(result *ValidationResult) {
	switch o.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.logging.level",
			Message: fmt.Sprintf("unsupported log level %q", o.Logging.Level),
			Hint:    "use debug, info, warn or error",
		})
	}

	switch o.Logging.Format {
	case "", "json", "text":
	default:
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.logging.format",
			Message: fmt.Sprintf("unsupported log format %q", o.Logging.Format),
			Hint:    "use json or text",
		})
	}

	if o.TraceSampleRatio < 0 || o.TraceSampleRatio > 1 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.trace_sample_ratio",
			Message: "trace sample ratio must be between 0.0 and 1.0",
		})
	}

	if (o.TracingEnabled || o.Logging.ExportsEnabled) && o.GetTracesConfig().Endpoint == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.otlp.endpoint",
			Message: "OTLP endpoint is required when exports are enabled",
		})
	}
}
