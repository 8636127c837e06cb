package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	if cfg.Network != "testnet" {
		t.Errorf("Network = %q, want %q", cfg.Network, "testnet")
	}

	// Verify default service config
	if cfg.Service.Command != "flow" {
		t.Errorf("Service.Command = %q, want %q", cfg.Service.Command, "flow")
	}
	if len(cfg.Service.Args) != 2 || cfg.Service.Args[1] != "language-server" {
		t.Errorf("Service.Args = %v, want [cadence language-server]", cfg.Service.Args)
	}

	// Verify default lifecycle config
	if cfg.Lifecycle.PollIntervalMs != 100 {
		t.Errorf("Lifecycle.PollIntervalMs = %d, want 100", cfg.Lifecycle.PollIntervalMs)
	}
	if cfg.Lifecycle.RestartRate != 5 {
		t.Errorf("Lifecycle.RestartRate = %v, want 5", cfg.Lifecycle.RestartRate)
	}
	if cfg.Lifecycle.RestartBurst != 10 {
		t.Errorf("Lifecycle.RestartBurst = %d, want 10", cfg.Lifecycle.RestartBurst)
	}

	// Verify default registry config
	if !cfg.Registry.Watch {
		t.Error("Registry.Watch should be true by default")
	}
	if cfg.Registry.HasSources() {
		t.Error("Registry should have no sources by default")
	}

	// Verify default sdk config
	if cfg.SDK.ComputeLimit != 9999 {
		t.Errorf("SDK.ComputeLimit = %d, want 9999", cfg.SDK.ComputeLimit)
	}

	if cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled should be false by default")
	}
}

func TestDurations(t *testing.T) {
	tests := []struct {
		name     string
		got      time.Duration
		expected time.Duration
	}{
		{"poll interval", (&LifecycleConfig{PollIntervalMs: 250}).PollInterval(), 250 * time.Millisecond},
		{"ready timeout", (&LifecycleConfig{ReadyTimeoutSeconds: 3}).ReadyTimeout(), 3 * time.Second},
		{"ready timeout unbounded", (&LifecycleConfig{}).ReadyTimeout(), 0},
		{"adapter timeout", (&LifecycleConfig{AdapterStartTimeoutSeconds: 10}).AdapterStartTimeout(), 10 * time.Second},
		{"stop timeout", (&LifecycleConfig{StopTimeoutMs: 1500}).StopTimeout(), 1500 * time.Millisecond},
		{"grace period", (&ServiceConfig{GracePeriodMs: 2000}).GracePeriod(), 2 * time.Second},
		{"debounce", (&RegistryConfig{DebounceMs: 50}).Debounce(), 50 * time.Millisecond},
		{"sdk timeout", (&SDKConfig{TimeoutSeconds: 30}).Timeout(), 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %v, want %v", tt.got, tt.expected)
			}
		})
	}
}

func TestLoggingConfig_LogDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")

	cfg := LoggingConfig{}
	if got := cfg.LogDir(); got != "/custom/config/cadencehost/logs" {
		t.Errorf("LogDir() = %q, want default under config dir", got)
	}
	cfg.Dir = "/var/log/cadencehost"
	if got := cfg.LogDir(); got != "/var/log/cadencehost" {
		t.Errorf("LogDir() = %q, want explicit dir", got)
	}
}

func TestConfigDir(t *testing.T) {
	t.Run("with XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")
		result := ConfigDir()
		expected := "/custom/config/cadencehost"
		if result != expected {
			t.Errorf("ConfigDir() = %q, want %q", result, expected)
		}
	})

	t.Run("without XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		result := ConfigDir()

		home, _ := os.UserHomeDir()
		expected := filepath.Join(home, ".config", "cadencehost")
		if result != expected {
			t.Errorf("ConfigDir() = %q, want %q", result, expected)
		}
	})
}

func TestConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	result := ConfigFile()
	expected := "/custom/config/cadencehost/config.yaml"
	if result != expected {
		t.Errorf("ConfigFile() = %q, want %q", result, expected)
	}
}

func TestGet(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	SetDefaults()

	cfg := Get()
	if cfg == nil {
		t.Fatal("Get() returned nil")
	}
	if cfg.Service.Command != "flow" {
		t.Errorf("Get().Service.Command = %q, want %q", cfg.Service.Command, "flow")
	}
}

func TestLoad_FromFile(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	SetDefaults()

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `network: mainnet
lifecycle:
  poll_interval_ms: 250
registry:
  dir: ./contracts
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig failed: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Network != "mainnet" {
		t.Errorf("Network = %q, want mainnet", cfg.Network)
	}
	if cfg.Lifecycle.PollIntervalMs != 250 {
		t.Errorf("PollIntervalMs = %d, want 250", cfg.Lifecycle.PollIntervalMs)
	}
	if cfg.Lifecycle.RestartBurst != 10 {
		t.Errorf("Unset keys should keep defaults, RestartBurst = %d", cfg.Lifecycle.RestartBurst)
	}
	if !cfg.Registry.HasSources() {
		t.Error("Expected registry dir to count as a source")
	}
}

func TestLoad_Invalid(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	SetDefaults()
	viper.Set("network", "moonnet")

	_, err := Load()
	if err == nil {
		t.Fatal("Expected validation error")
	}
	if _, ok := err.(ValidationErrors); !ok {
		t.Errorf("Expected ValidationErrors, got %T", err)
	}
	if cfg := Get(); cfg.Network != "testnet" {
		t.Errorf("Get() should fall back to defaults, got network %q", cfg.Network)
	}
}
