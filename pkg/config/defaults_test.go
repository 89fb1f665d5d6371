package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApplyDefaultsOnEmptyConfig(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "stdout", cfg.Logging.Output)

	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)

	assert.Equal(t, 8484, cfg.ControlPlane.Port)
	assert.Equal(t, 10*time.Second, cfg.ControlPlane.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.ControlPlane.WriteTimeout)
	assert.Equal(t, 60*time.Second, cfg.ControlPlane.IdleTimeout)

	assert.Equal(t, 16, cfg.Engine.QueueSize)
	assert.Equal(t, 1, cfg.Engine.WriteWorkers)
	// Zero compression level means the library default; zero cap means no cap.
	assert.Equal(t, 0, cfg.Engine.CompressionLevel)
	assert.Zero(t, cfg.Engine.MaxStagedBytes)

	assert.Equal(t, "slot", cfg.Slots.Prefix)
	assert.Equal(t, ".sav", cfg.Slots.Extension)
	assert.Equal(t, 10, cfg.Slots.Count)
	assert.Empty(t, cfg.Slots.Dir, "the slot directory has no default")
}

func TestApplyDefaultsNormalizesLevel(t *testing.T) {
	cfg := &Config{Logging: LoggingConfig{Level: "debug"}}
	ApplyDefaults(cfg)

	assert.Equal(t, "DEBUG", cfg.Logging.Level)
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := &Config{Engine: EngineConfig{QueueSize: 4, WriteWorkers: 2}}
	ApplyDefaults(cfg)

	assert.Equal(t, 4, cfg.Engine.QueueSize)
	assert.Equal(t, 2, cfg.Engine.WriteWorkers)
}

func TestApplyDefaultsTelemetry(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "localhost:4317", cfg.Telemetry.Endpoint)
	assert.Equal(t, 1.0, cfg.Telemetry.SampleRate)
	assert.Equal(t, "http://localhost:4040", cfg.Telemetry.Profiling.Endpoint)
	assert.NotEmpty(t, cfg.Telemetry.Profiling.ProfileTypes)
}
