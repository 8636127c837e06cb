package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete cadencehost configuration
type Config struct {
	// Network is the network documents are resolved and executed against.
	// Options: "testnet", "mainnet", "emulator" (default: "testnet")
	Network   string          `mapstructure:"network"`
	Service   ServiceConfig   `mapstructure:"service"`
	Lifecycle LifecycleConfig `mapstructure:"lifecycle"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	SDK       SDKConfig       `mapstructure:"sdk"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// ServiceConfig controls how the language server process is spawned
type ServiceConfig struct {
	// Command is the executable to run (default: "flow")
	Command string `mapstructure:"command"`
	// Args are passed to Command (default: ["cadence", "language-server"])
	Args []string `mapstructure:"args"`
	// Env holds extra KEY=VALUE pairs for the process environment
	Env []string `mapstructure:"env"`
	// Dir is the working directory of the process. Empty means the current directory.
	Dir string `mapstructure:"dir"`
	// GracePeriodMs is how long a closing process may take before it is killed (default: 2000)
	GracePeriodMs int `mapstructure:"grace_period_ms"`
}

// LifecycleConfig controls readiness polling, handshakes and restarts
type LifecycleConfig struct {
	// PollIntervalMs is the readiness polling period in milliseconds (default: 100)
	PollIntervalMs int `mapstructure:"poll_interval_ms"`
	// MaxPollAttempts bounds readiness checks (0 = unbounded)
	MaxPollAttempts int `mapstructure:"max_poll_attempts"`
	// ReadyTimeoutSeconds bounds total readiness polling (0 = unbounded, default: 30)
	ReadyTimeoutSeconds int `mapstructure:"ready_timeout_seconds"`
	// AdapterStartTimeoutSeconds bounds the client handshake (default: 10)
	AdapterStartTimeoutSeconds int `mapstructure:"adapter_start_timeout_seconds"`
	// StopTimeoutMs bounds graceful shutdown of a superseded generation (default: 2000)
	StopTimeoutMs int `mapstructure:"stop_timeout_ms"`
	// RestartRate is the sustained restarts per second allowed (0 = unlimited, default: 5)
	RestartRate float64 `mapstructure:"restart_rate"`
	// RestartBurst is the number of restarts allowed back to back (default: 10)
	RestartBurst int `mapstructure:"restart_burst"`
	// LaneSize bounds each message lane (0 = the default of 256)
	LaneSize int `mapstructure:"lane_size"`
}

// RegistryConfig controls where contract sources are loaded from
type RegistryConfig struct {
	// Manifest is a YAML registry file
	Manifest string `mapstructure:"manifest"`
	// FlowJSON is a Flow project configuration file
	FlowJSON string `mapstructure:"flow_json"`
	// Dir is a directory of .cdc files, each registered under its base name
	Dir string `mapstructure:"dir"`
	// Watch reloads the registry when any source changes (default: true)
	Watch bool `mapstructure:"watch"`
	// DebounceMs coalesces bursts of file events (default: 50)
	DebounceMs int `mapstructure:"debounce_ms"`
}

// SDKConfig controls script and transaction execution
type SDKConfig struct {
	// AccessNode overrides the network's default access node URL
	AccessNode string `mapstructure:"access_node"`
	// ComputeLimit is the transaction compute limit (default: 9999)
	ComputeLimit int `mapstructure:"compute_limit"`
	// TimeoutSeconds bounds each access node request (default: 30)
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// LoggingConfig controls host logging
type LoggingConfig struct {
	// Enabled controls whether logs are written to disk (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// Dir is where host.log is written. Empty means <config dir>/logs.
	Dir string `mapstructure:"dir"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
	// Compress gzips rotated log files (default: false)
	Compress bool `mapstructure:"compress"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	// Enabled serves metrics while watching (default: false)
	Enabled bool `mapstructure:"enabled"`
	// Address is the listen address of the metrics endpoint (default: "127.0.0.1:9464")
	Address string `mapstructure:"address"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Network: "testnet",
		Service: ServiceConfig{
			Command:       "flow",
			Args:          []string{"cadence", "language-server"},
			Env:           []string{},
			GracePeriodMs: 2000,
		},
		Lifecycle: LifecycleConfig{
			PollIntervalMs:             100,
			MaxPollAttempts:            0,
			ReadyTimeoutSeconds:        30,
			AdapterStartTimeoutSeconds: 10,
			StopTimeoutMs:              2000,
			RestartRate:                5,
			RestartBurst:               10,
			LaneSize:                   0,
		},
		Registry: RegistryConfig{
			Watch:      true,
			DebounceMs: 50,
		},
		SDK: SDKConfig{
			ComputeLimit:   9999,
			TimeoutSeconds: 30,
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: "127.0.0.1:9464",
		},
	}
}

// GracePeriod returns the grace period as a time.Duration
func (c *ServiceConfig) GracePeriod() time.Duration {
	return time.Duration(c.GracePeriodMs) * time.Millisecond
}

// PollInterval returns the polling period as a time.Duration
func (c *LifecycleConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// ReadyTimeout returns the readiness budget as a time.Duration (0 means unbounded)
func (c *LifecycleConfig) ReadyTimeout() time.Duration {
	return time.Duration(c.ReadyTimeoutSeconds) * time.Second
}

// AdapterStartTimeout returns the handshake budget as a time.Duration
func (c *LifecycleConfig) AdapterStartTimeout() time.Duration {
	return time.Duration(c.AdapterStartTimeoutSeconds) * time.Second
}

// StopTimeout returns the shutdown budget as a time.Duration
func (c *LifecycleConfig) StopTimeout() time.Duration {
	return time.Duration(c.StopTimeoutMs) * time.Millisecond
}

// Debounce returns the file event debounce as a time.Duration
func (c *RegistryConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// HasSources reports whether any registry source is configured
func (c *RegistryConfig) HasSources() bool {
	return c.Manifest != "" || c.FlowJSON != "" || c.Dir != ""
}

// Timeout returns the request timeout as a time.Duration
func (c *SDKConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LogDir returns the directory host.log is written to
func (c *LoggingConfig) LogDir() string {
	if c.Dir != "" {
		return c.Dir
	}
	return filepath.Join(ConfigDir(), "logs")
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("network", defaults.Network)

	// Service defaults
	viper.SetDefault("service.command", defaults.Service.Command)
	viper.SetDefault("service.args", defaults.Service.Args)
	viper.SetDefault("service.env", defaults.Service.Env)
	viper.SetDefault("service.dir", defaults.Service.Dir)
	viper.SetDefault("service.grace_period_ms", defaults.Service.GracePeriodMs)

	// Lifecycle defaults
	viper.SetDefault("lifecycle.poll_interval_ms", defaults.Lifecycle.PollIntervalMs)
	viper.SetDefault("lifecycle.max_poll_attempts", defaults.Lifecycle.MaxPollAttempts)
	viper.SetDefault("lifecycle.ready_timeout_seconds", defaults.Lifecycle.ReadyTimeoutSeconds)
	viper.SetDefault("lifecycle.adapter_start_timeout_seconds", defaults.Lifecycle.AdapterStartTimeoutSeconds)
	viper.SetDefault("lifecycle.stop_timeout_ms", defaults.Lifecycle.StopTimeoutMs)
	viper.SetDefault("lifecycle.restart_rate", defaults.Lifecycle.RestartRate)
	viper.SetDefault("lifecycle.restart_burst", defaults.Lifecycle.RestartBurst)
	viper.SetDefault("lifecycle.lane_size", defaults.Lifecycle.LaneSize)

	// Registry defaults
	viper.SetDefault("registry.manifest", defaults.Registry.Manifest)
	viper.SetDefault("registry.flow_json", defaults.Registry.FlowJSON)
	viper.SetDefault("registry.dir", defaults.Registry.Dir)
	viper.SetDefault("registry.watch", defaults.Registry.Watch)
	viper.SetDefault("registry.debounce_ms", defaults.Registry.DebounceMs)

	// SDK defaults
	viper.SetDefault("sdk.access_node", defaults.SDK.AccessNode)
	viper.SetDefault("sdk.compute_limit", defaults.SDK.ComputeLimit)
	viper.SetDefault("sdk.timeout_seconds", defaults.SDK.TimeoutSeconds)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	viper.SetDefault("metrics.address", defaults.Metrics.Address)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "cadencehost")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cadencehost"
	}
	return filepath.Join(home, ".config", "cadencehost")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ValidNetworks returns the list of valid network values
func ValidNetworks() []string {
	return []string{"testnet", "mainnet", "emulator"}
}
