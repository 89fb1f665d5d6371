package config

import (
	"strings"
	"time"

	"github.com/marmos91/savepoint/pkg/controlplane/api"
)

// ApplyDefaults fills zero-valued fields with their defaults after the file
// and environment layers have been merged. Explicit values are never
// overwritten.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyShutdownTimeoutDefaults(cfg)
	applyControlPlaneDefaults(&cfg.ControlPlane)
	applyEngineDefaults(&cfg.Engine)
	applySlotsDefaults(&cfg.Slots)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Level is stored uppercase so comparisons never care about input case.
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	// Enabled stays false unless set; the defaults below only matter once
	// someone turns tracing on.
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	applyProfilingDefaults(&cfg.Profiling)
}

func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	// Mutex and block profiles are left out of the default set; their
	// runtime samplers add overhead to the hot snapshot path.
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applyControlPlaneDefaults(cfg *api.APIConfig) {
	if cfg.Port == 0 {
		cfg.Port = 8484
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
}

func applyEngineDefaults(cfg *EngineConfig) {
	if cfg.QueueSize == 0 {
		cfg.QueueSize = 16
	}
	if cfg.WriteWorkers == 0 {
		cfg.WriteWorkers = 1
	}
	// CompressionLevel zero selects the library default.
	// MaxStagedBytes zero means no cap.
}

// The slot directory has no default; it must be configured.
func applySlotsDefaults(cfg *SlotsConfig) {
	if cfg.Prefix == "" {
		cfg.Prefix = "slot"
	}
	if cfg.Extension == "" {
		cfg.Extension = ".sav"
	}
	if cfg.Count == 0 {
		cfg.Count = 10
	}
}

// GetDefaultConfig returns a fully defaulted Config, used for sample config
// generation and in tests.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Logging: LoggingConfig{},
		Slots: SlotsConfig{
			Dir: "/var/lib/savepoint/slots",
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
