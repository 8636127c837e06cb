package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Iron-Ham/cadencehost/internal/config"
	"github.com/Iron-Ham/cadencehost/internal/logging"
	"github.com/Iron-Ham/cadencehost/internal/network"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify cadencehost configuration",
	Long: `View or modify cadencehost configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  cadencehost config set network mainnet
  cadencehost config set lifecycle.poll_interval_ms 250
  cadencehost config set registry.manifest contracts.yaml

Valid keys:
  network                                - Network to resolve and execute against
                                           Options: testnet, mainnet, emulator
  service.command                        - Language server executable
  service.dir                            - Language server working directory
  service.grace_period_ms                - Shutdown grace period in milliseconds
  lifecycle.poll_interval_ms             - Readiness polling period in milliseconds
  lifecycle.max_poll_attempts            - Readiness checks before giving up (0 = unbounded)
  lifecycle.ready_timeout_seconds        - Readiness timeout (0 = unbounded)
  lifecycle.adapter_start_timeout_seconds - Client handshake timeout
  lifecycle.stop_timeout_ms              - Graceful stop timeout in milliseconds
  lifecycle.restart_rate                 - Sustained restarts per second (0 = unlimited)
  lifecycle.restart_burst                - Restarts allowed back to back
  lifecycle.lane_size                    - Message lane capacity (0 = default 256)
  registry.manifest                      - YAML contract manifest
  registry.flow_json                     - Flow project file
  registry.dir                           - Directory of .cdc contracts
  registry.watch                         - Reload the registry on change (true/false)
  registry.debounce_ms                   - Reload debounce in milliseconds
  sdk.access_node                        - Access node URL override
  sdk.compute_limit                      - Transaction compute limit
  sdk.timeout_seconds                    - Access node request timeout
  logging.enabled                        - Write host.log (true/false)
  logging.level                          - Log level: debug, info, warn, error
  logging.dir                            - Log directory
  logging.max_size_mb                    - Log size before rotation
  logging.max_backups                    - Rotated logs to keep
  logging.compress                       - Gzip rotated logs (true/false)
  metrics.enabled                        - Serve Prometheus metrics while watching (true/false)
  metrics.address                        - Metrics listen address`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/cadencehost/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

// configKeys maps every settable key to its value type.
var configKeys = map[string]string{
	"network":                                 "network",
	"service.command":                         "string",
	"service.dir":                             "string",
	"service.grace_period_ms":                 "int",
	"lifecycle.poll_interval_ms":              "int",
	"lifecycle.max_poll_attempts":             "int",
	"lifecycle.ready_timeout_seconds":         "int",
	"lifecycle.adapter_start_timeout_seconds": "int",
	"lifecycle.stop_timeout_ms":               "int",
	"lifecycle.restart_rate":                  "float",
	"lifecycle.restart_burst":                 "int",
	"lifecycle.lane_size":                     "int",
	"registry.manifest":                       "string",
	"registry.flow_json":                      "string",
	"registry.dir":                            "string",
	"registry.watch":                          "bool",
	"registry.debounce_ms":                    "int",
	"sdk.access_node":                         "string",
	"sdk.compute_limit":                       "int",
	"sdk.timeout_seconds":                     "int",
	"logging.enabled":                         "bool",
	"logging.level":                           "level",
	"logging.dir":                             "string",
	"logging.max_size_mb":                     "int",
	"logging.max_backups":                     "int",
	"logging.compress":                        "bool",
	"metrics.enabled":                         "bool",
	"metrics.address":                         "string",
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	writeConfig(cmd.OutOrStdout(), config.Get(), viper.ConfigFileUsed())
	return nil
}

func writeConfig(w io.Writer, cfg *config.Config, used string) {
	fmt.Fprintln(w, "Current configuration:")
	fmt.Fprintln(w)

	// Show where config is being read from
	if used != "" {
		fmt.Fprintf(w, "Config file: %s\n", used)
	} else {
		fmt.Fprintf(w, "Config file: (none - using defaults)\n")
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "network: %s\n", cfg.Network)

	fmt.Fprintln(w, "service:")
	fmt.Fprintf(w, "  command: %s\n", cfg.Service.Command)
	fmt.Fprintf(w, "  args: [%s]\n", strings.Join(cfg.Service.Args, ", "))
	if len(cfg.Service.Env) > 0 {
		fmt.Fprintf(w, "  env: [%s]\n", strings.Join(cfg.Service.Env, ", "))
	}
	if cfg.Service.Dir != "" {
		fmt.Fprintf(w, "  dir: %s\n", cfg.Service.Dir)
	}
	fmt.Fprintf(w, "  grace_period_ms: %d\n", cfg.Service.GracePeriodMs)

	fmt.Fprintln(w, "lifecycle:")
	fmt.Fprintf(w, "  poll_interval_ms: %d\n", cfg.Lifecycle.PollIntervalMs)
	fmt.Fprintf(w, "  max_poll_attempts: %d\n", cfg.Lifecycle.MaxPollAttempts)
	fmt.Fprintf(w, "  ready_timeout_seconds: %d\n", cfg.Lifecycle.ReadyTimeoutSeconds)
	fmt.Fprintf(w, "  adapter_start_timeout_seconds: %d\n", cfg.Lifecycle.AdapterStartTimeoutSeconds)
	fmt.Fprintf(w, "  stop_timeout_ms: %d\n", cfg.Lifecycle.StopTimeoutMs)
	fmt.Fprintf(w, "  restart_rate: %g\n", cfg.Lifecycle.RestartRate)
	fmt.Fprintf(w, "  restart_burst: %d\n", cfg.Lifecycle.RestartBurst)
	fmt.Fprintf(w, "  lane_size: %d\n", cfg.Lifecycle.LaneSize)

	fmt.Fprintln(w, "registry:")
	fmt.Fprintf(w, "  manifest: %s\n", cfg.Registry.Manifest)
	fmt.Fprintf(w, "  flow_json: %s\n", cfg.Registry.FlowJSON)
	fmt.Fprintf(w, "  dir: %s\n", cfg.Registry.Dir)
	fmt.Fprintf(w, "  watch: %v\n", cfg.Registry.Watch)
	fmt.Fprintf(w, "  debounce_ms: %d\n", cfg.Registry.DebounceMs)

	fmt.Fprintln(w, "sdk:")
	fmt.Fprintf(w, "  access_node: %s\n", cfg.SDK.AccessNode)
	fmt.Fprintf(w, "  compute_limit: %d\n", cfg.SDK.ComputeLimit)
	fmt.Fprintf(w, "  timeout_seconds: %d\n", cfg.SDK.TimeoutSeconds)

	fmt.Fprintln(w, "logging:")
	fmt.Fprintf(w, "  enabled: %v\n", cfg.Logging.Enabled)
	fmt.Fprintf(w, "  level: %s\n", cfg.Logging.Level)
	fmt.Fprintf(w, "  dir: %s\n", cfg.Logging.LogDir())
	fmt.Fprintf(w, "  max_size_mb: %d\n", cfg.Logging.MaxSizeMB)
	fmt.Fprintf(w, "  max_backups: %d\n", cfg.Logging.MaxBackups)
	fmt.Fprintf(w, "  compress: %v\n", cfg.Logging.Compress)

	fmt.Fprintln(w, "metrics:")
	fmt.Fprintf(w, "  enabled: %v\n", cfg.Metrics.Enabled)
	fmt.Fprintf(w, "  address: %s\n", cfg.Metrics.Address)
}

// parseConfigValue validates value for key and converts it to the key's type.
func parseConfigValue(key, value string) (any, error) {
	keyType, ok := configKeys[key]
	if !ok {
		return nil, fmt.Errorf("unknown configuration key: %s\nRun 'cadencehost config set --help' to see valid keys", key)
	}

	switch keyType {
	case "network":
		n, err := network.Parse(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", key, err)
		}
		return n.String(), nil
	case "level":
		level := strings.ToLower(value)
		for _, valid := range config.ValidLogLevels() {
			if level == valid {
				return level, nil
			}
		}
		return nil, fmt.Errorf("invalid value for %s: %s\nValid options: %s",
			key, value, strings.Join(config.ValidLogLevels(), ", "))
	case "bool":
		if value != "true" && value != "false" {
			return nil, fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		return value == "true", nil
	case "int":
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected integer", key)
		}
		if intVal < 0 {
			return nil, fmt.Errorf("invalid value for %s: must be non-negative", key)
		}
		return intVal, nil
	case "float":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected number", key)
		}
		if f < 0 {
			return nil, fmt.Errorf("invalid value for %s: must be non-negative", key)
		}
		return f, nil
	default:
		return value, nil
	}
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	typedValue, err := parseConfigValue(key, args[1])
	if err != nil {
		return err
	}

	// Ensure config directory exists
	configDir := config.ConfigDir()
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Set the value in viper
	viper.Set(key, typedValue)

	// Write to config file
	configFile := config.ConfigFile()
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v\n", key, typedValue)
	fmt.Fprintf(cmd.OutOrStdout(), "Config saved to %s\n", configFile)

	return nil
}

// defaultConfigContent is written by config init.
const defaultConfigContent = `# cadencehost configuration

# Network documents are resolved and executed against
# Options: testnet, mainnet, emulator
network: testnet

# Language server process
service:
  command: flow
  args: [cadence, language-server]
  # Extra KEY=VALUE environment entries
  env: []
  # How long a closing server may take before it is killed
  grace_period_ms: 2000

# Readiness polling, handshakes and restarts
lifecycle:
  poll_interval_ms: 100
  # 0 = unbounded
  max_poll_attempts: 0
  ready_timeout_seconds: 30
  adapter_start_timeout_seconds: 10
  stop_timeout_ms: 2000
  # Sustained restarts per second (0 = unlimited) and back-to-back allowance
  restart_rate: 5
  restart_burst: 10
  # Message lane capacity (0 = default 256)
  lane_size: 0

# Local contract sources used to resolve imports
registry:
  # manifest: contracts.yaml
  # flow_json: flow.json
  # dir: contracts
  watch: true
  debounce_ms: 50

# Script and transaction execution
sdk:
  # access_node: https://rest-testnet.onflow.org
  compute_limit: 9999
  timeout_seconds: 30

# Host logging
logging:
  enabled: true
  # Options: debug, info, warn, error
  level: info
  max_size_mb: 10
  max_backups: 3
  compress: false

# Prometheus endpoint served by watch
metrics:
  enabled: false
  address: 127.0.0.1:9464
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'cadencehost config set' to modify values", configFile)
	}

	// Create config directory
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configFile, []byte(defaultConfigContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", configFile)
	fmt.Fprintln(cmd.OutOrStdout(), "Edit this file to customize cadencehost's behavior.")

	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	configFile := config.ConfigFile()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(w, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(w, "Default path: %s (not created)\n", configFile)
	}

	// Also show config search paths
	fmt.Fprintln(w, "\nSearch paths:")
	fmt.Fprintf(w, "  1. %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	fmt.Fprintf(w, "  2. $HOME/.config/cadencehost/config.yaml\n")
	fmt.Fprintf(w, "  3. ./config.yaml (current directory)\n")
	fmt.Fprintln(w, "\nEnvironment variables: CADENCEHOST_* (e.g., CADENCEHOST_LIFECYCLE_POLL_INTERVAL_MS)")
	fmt.Fprintf(w, "Log file: %s\n", filepath.Join(config.Get().Logging.LogDir(), logging.LogFileName))

	return nil
}
