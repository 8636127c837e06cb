package config

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "lifecycle.poll_interval_ms")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateNetwork()...)
	errors = append(errors, c.validateService()...)
	errors = append(errors, c.validateLifecycle()...)
	errors = append(errors, c.validateRegistry()...)
	errors = append(errors, c.validateSDK()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateMetrics()...)

	return errors
}

func (c *Config) validateNetwork() []ValidationError {
	if c.Network == "" || slices.Contains(ValidNetworks(), c.Network) {
		return nil
	}
	return []ValidationError{{
		Field:   "network",
		Value:   c.Network,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidNetworks(), ", ")),
	}}
}

func (c *Config) validateService() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Service.Command) == "" {
		errors = append(errors, ValidationError{
			Field:   "service.command",
			Value:   c.Service.Command,
			Message: "must not be empty",
		})
	}

	if c.Service.GracePeriodMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "service.grace_period_ms",
			Value:   c.Service.GracePeriodMs,
			Message: "must be non-negative",
		})
	}

	for _, kv := range c.Service.Env {
		if !strings.Contains(kv, "=") {
			errors = append(errors, ValidationError{
				Field:   "service.env",
				Value:   kv,
				Message: "entries must have the form KEY=VALUE",
			})
		}
	}

	return errors
}

func (c *Config) validateLifecycle() []ValidationError {
	var errors []ValidationError
	l := c.Lifecycle

	// Poll interval must be positive; below 10ms the poll becomes a spin
	if l.PollIntervalMs < 10 {
		errors = append(errors, ValidationError{
			Field:   "lifecycle.poll_interval_ms",
			Value:   l.PollIntervalMs,
			Message: "must be at least 10",
		})
	}

	nonNegative := []struct {
		field string
		value int
	}{
		{"lifecycle.max_poll_attempts", l.MaxPollAttempts},
		{"lifecycle.ready_timeout_seconds", l.ReadyTimeoutSeconds},
		{"lifecycle.lane_size", l.LaneSize},
	}
	for _, nn := range nonNegative {
		if nn.value < 0 {
			errors = append(errors, ValidationError{
				Field:   nn.field,
				Value:   nn.value,
				Message: "must be non-negative",
			})
		}
	}

	if l.AdapterStartTimeoutSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "lifecycle.adapter_start_timeout_seconds",
			Value:   l.AdapterStartTimeoutSeconds,
			Message: "must be positive",
		})
	}

	if l.StopTimeoutMs <= 0 {
		errors = append(errors, ValidationError{
			Field:   "lifecycle.stop_timeout_ms",
			Value:   l.StopTimeoutMs,
			Message: "must be positive",
		})
	}

	if l.RestartRate < 0 {
		errors = append(errors, ValidationError{
			Field:   "lifecycle.restart_rate",
			Value:   l.RestartRate,
			Message: "must be non-negative",
		})
	}

	// A limited rate needs room for at least one restart
	if l.RestartRate > 0 && l.RestartBurst < 1 {
		errors = append(errors, ValidationError{
			Field:   "lifecycle.restart_burst",
			Value:   l.RestartBurst,
			Message: "must be at least 1 when restart_rate is set",
		})
	}

	return errors
}

func (c *Config) validateRegistry() []ValidationError {
	var errors []ValidationError

	if c.Registry.DebounceMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "registry.debounce_ms",
			Value:   c.Registry.DebounceMs,
			Message: "must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateSDK() []ValidationError {
	var errors []ValidationError

	if c.SDK.AccessNode != "" {
		u, err := url.Parse(c.SDK.AccessNode)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errors = append(errors, ValidationError{
				Field:   "sdk.access_node",
				Value:   c.SDK.AccessNode,
				Message: "must be an http or https URL",
			})
		}
	}

	if c.SDK.ComputeLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "sdk.compute_limit",
			Value:   c.SDK.ComputeLimit,
			Message: "must be positive",
		})
	}

	if c.SDK.TimeoutSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "sdk.timeout_seconds",
			Value:   c.SDK.TimeoutSeconds,
			Message: "must be positive",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	// Validate log level
	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	// Max size must be positive
	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	// Reasonable upper bound for log file size
	const maxLogSizeMB = 1000 // 1GB
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	// Max backups must be non-negative
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateMetrics() []ValidationError {
	if !c.Metrics.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Metrics.Address); err != nil {
		return []ValidationError{{
			Field:   "metrics.address",
			Value:   c.Metrics.Address,
			Message: "must be a host:port address",
		}}
	}
	return nil
}
