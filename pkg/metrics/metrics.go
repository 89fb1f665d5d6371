// Package metrics defines the observability interfaces for the checkpoint
// engine. Implementations are optional: pass nil to disable metrics
// collection with zero overhead.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckpointMetrics provides observability for checkpoint operations.
//
// Example usage:
//
//	// With metrics enabled
//	metrics.InitRegistry()
//	engine := checkpoint.New(cfg, metrics.NewCheckpointMetrics())
//
//	// Without metrics (pass nil for zero overhead)
//	engine := checkpoint.New(cfg, nil)
type CheckpointMetrics interface {
	// RecordSave records a completed save operation with its outcome.
	// status is "ok" or the error code name.
	RecordSave(status string, duration time.Duration)

	// RecordLoad records a completed load operation with its outcome.
	RecordLoad(status string, duration time.Duration)

	// RecordStageDuration records the duration of one pipeline stage
	// (snapshot, write, restore).
	RecordStageDuration(stage string, duration time.Duration)

	// RecordStagedBytes records the size of a staging buffer handed to the
	// write stage.
	RecordStagedBytes(bytes int64)

	// SetQueueDepth records the executor queue depth.
	SetQueueDepth(depth int)
}

var (
	mu       sync.RWMutex
	registry *prometheus.Registry
	enabled  bool

	// newPrometheusCheckpointMetrics is implemented in
	// pkg/metrics/prometheus. The indirection avoids an import cycle while
	// keeping the API clean.
	newPrometheusCheckpointMetrics func() CheckpointMetrics
)

// InitRegistry creates the process-wide Prometheus registry and enables
// metric collection. Safe to call more than once.
func InitRegistry() {
	mu.Lock()
	defer mu.Unlock()
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	enabled = true
}

// IsEnabled returns whether metrics collection is enabled.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// GetRegistry returns the process-wide registry, or nil when metrics are
// disabled.
func GetRegistry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return registry
}

// NewCheckpointMetrics creates a Prometheus-backed CheckpointMetrics
// instance. Returns nil if metrics are not enabled (InitRegistry not
// called), which callers pass through for zero overhead.
func NewCheckpointMetrics() CheckpointMetrics {
	if !IsEnabled() || newPrometheusCheckpointMetrics == nil {
		return nil
	}
	return newPrometheusCheckpointMetrics()
}

// RegisterCheckpointMetricsConstructor registers the Prometheus constructor.
// Called by pkg/metrics/prometheus during package initialization.
func RegisterCheckpointMetricsConstructor(constructor func() CheckpointMetrics) {
	newPrometheusCheckpointMetrics = constructor
}
