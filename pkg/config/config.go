package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/savepoint/internal/bytesize"
	"github.com/marmos91/savepoint/pkg/controlplane/api"
)

// Config is the static configuration of a checkpoint host: logging,
// telemetry, the control-plane API, engine tunables, the slot layout, and
// the archive catalog.
//
// Values come from, in order of precedence: SAVEPOINT_* environment
// variables, the configuration file (YAML or TOML), and built-in
// defaults.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// ShutdownTimeout is the maximum time to wait for queued checkpoint
	// tasks to drain during graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// ControlPlane is the HTTP API that exposes save, load, and verify.
	ControlPlane api.APIConfig `mapstructure:"controlplane" yaml:"controlplane"`

	// Engine holds the checkpoint executor and write-pool tunables.
	Engine EngineConfig `mapstructure:"engine" yaml:"engine"`

	// Slots configures the quick-save slot directory layout
	Slots SlotsConfig `mapstructure:"slots" yaml:"slots"`

	// Catalog configures the archive catalog persistence
	Catalog CatalogConfig `mapstructure:"catalog" yaml:"catalog"`
}

// LoggingConfig selects log level, format, and destination.
type LoggingConfig struct {
	// Level: DEBUG, INFO, WARN, or ERROR. Lowercase input is normalized.
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format: text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output: stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls tracing of checkpoint operations. Traces go to
// any OTLP-compatible collector over gRPC. Off by default.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the collector host:port. Default: localhost:4317.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure disables TLS on the collector connection.
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate: 0.0 drops every trace, 1.0 keeps every trace.
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls continuous profiling through Pyroscope. Off by
// default; useful when chasing snapshot or compression stalls.
type ProfilingConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server URL. Default: http://localhost:4040.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes lists profiles to collect; see the telemetry package for
	// the accepted names.
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig configures Prometheus metrics collection.
// When Enabled is false, no metrics are collected (zero overhead). The
// exposition endpoint is served by the control-plane API at /metrics.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// EngineConfig contains checkpoint engine tunables.
type EngineConfig struct {
	// QueueSize bounds the executor and write pool queues.
	// Default: 16
	QueueSize int `mapstructure:"queue_size" validate:"omitempty,min=1" yaml:"queue_size"`

	// WriteWorkers is the number of background compression workers.
	// Default: 1
	WriteWorkers int `mapstructure:"write_workers" validate:"omitempty,min=1,max=16" yaml:"write_workers"`

	// CompressionLevel is the deflate level for archive entries (1-9).
	// Zero selects the library's default level.
	CompressionLevel int `mapstructure:"compression_level" validate:"omitempty,min=0,max=9" yaml:"compression_level"`

	// MaxStagedBytes caps the in-memory size of a single staged snapshot.
	// Supports human-readable formats: "1GB", "512MB", "10Gi".
	// Zero means no cap.
	MaxStagedBytes bytesize.ByteSize `mapstructure:"max_staged_bytes" yaml:"max_staged_bytes,omitempty"`
}

// SlotsConfig configures the quick-save slot directory layout.
type SlotsConfig struct {
	// Dir is the directory holding slot archives (required)
	// Example: /var/lib/savepoint/slots
	Dir string `mapstructure:"dir" validate:"required" yaml:"dir"`

	// Prefix is the filename prefix for slot archives.
	// Default: "slot"
	Prefix string `mapstructure:"prefix" yaml:"prefix"`

	// Extension is the archive filename extension.
	// Default: ".sav"
	Extension string `mapstructure:"extension" yaml:"extension"`

	// Count is the number of quick-save slots.
	// Default: 10
	Count int `mapstructure:"count" validate:"omitempty,min=1,max=100" yaml:"count"`

	// Backup renames an existing slot archive to a .backup suffix before a
	// save replaces it.
	Backup bool `mapstructure:"backup" yaml:"backup"`
}

// CatalogConfig configures the archive catalog.
type CatalogConfig struct {
	// Enabled controls whether the archive catalog is maintained
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Dir is the catalog database directory. Empty selects an in-memory
	// catalog that does not survive restarts.
	Dir string `mapstructure:"dir" yaml:"dir,omitempty"`

	// Watch mirrors out-of-band slot directory changes into the catalog
	Watch bool `mapstructure:"watch" yaml:"watch"`
}

// Load reads the configuration from configPath (or the default location
// when empty), layers SAVEPOINT_* environment variables on top, fills the
// gaps with defaults, and validates the result. A missing config file is
// not an error; it yields pure defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !found {
		return GetDefaultConfig(), nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// MustLoad is Load for CLI commands that require a config file to exist:
// the error explains how to create one instead of silently falling back to
// defaults.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file at %s\n\n"+
				"Create one with:\n"+
				"  savepoint config init\n\n"+
				"or point at an existing file:\n"+
				"  savepoint <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Create it with:\n"+
				"  savepoint config init --config %s",
				configPath, configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig writes cfg to path as YAML, creating parent directories.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	// SAVEPOINT_LOGGING_LEVEL=DEBUG overrides logging.level, and so on.
	v.SetEnvPrefix("SAVEPOINT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

// readConfigFile reports whether a config file was found and readable. Both
// the search-path miss and an explicit path that does not exist count as
// not found.
func readConfigFile(v *viper.Viper) (bool, error) {
	err := v.ReadInConfig()
	if err == nil {
		return true, nil
	}
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		return false, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to read config file: %w", err)
}

// configDecodeHooks combines the decode hooks for ByteSize and
// time.Duration fields.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook decodes "512Mi"-style strings and plain numbers into
// bytesize.ByteSize fields.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			// YAML numbers frequently arrive as float64.
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook decodes "30s"-style strings into time.Duration
// fields; raw numbers are taken as nanoseconds.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir resolves $XDG_CONFIG_HOME/savepoint, falling back to
// ~/.config/savepoint, then the current directory.
func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "savepoint")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "savepoint")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the default
// location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for the
// config init command).
func GetConfigDir() string {
	return getConfigDir()
}
