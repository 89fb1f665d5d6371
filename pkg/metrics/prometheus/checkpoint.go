// Package prometheus provides Prometheus implementations of the metrics
// interfaces defined in pkg/metrics.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/savepoint/pkg/metrics"
)

func init() {
	metrics.RegisterCheckpointMetricsConstructor(NewCheckpointMetrics)
}

// checkpointMetrics is the Prometheus implementation of
// metrics.CheckpointMetrics.
type checkpointMetrics struct {
	saves         *prometheus.CounterVec
	loads         *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	stagedBytes   prometheus.Histogram
	queueDepth    prometheus.Gauge
}

// NewCheckpointMetrics creates a new Prometheus-backed CheckpointMetrics
// instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewCheckpointMetrics() metrics.CheckpointMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &checkpointMetrics{
		saves: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "savepoint_saves_total",
				Help: "Total number of completed save operations by status",
			},
			[]string{"status"}, // "ok" or error code name
		),
		loads: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "savepoint_loads_total",
				Help: "Total number of completed load operations by status",
			},
			[]string{"status"},
		),
		stageDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "savepoint_stage_duration_milliseconds",
				Help: "Duration of checkpoint pipeline stages in milliseconds",
				Buckets: []float64{
					1,     // 1ms - snapshot of a tiny machine
					10,    // 10ms
					50,    // 50ms
					100,   // 100ms - typical snapshot
					500,   // 500ms
					1000,  // 1s - compression of a full image
					5000,  // 5s
					15000, // 15s
					60000, // 1m - worst-case restore from slow disk
				},
			},
			[]string{"stage"}, // "snapshot", "write", "restore"
		),
		stagedBytes: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "savepoint_staged_bytes",
				Help: "Distribution of staging buffer sizes handed to the write stage",
				Buckets: []float64{
					1048576,    // 1MB
					16777216,   // 16MB
					67108864,   // 64MB - typical main memory image
					134217728,  // 128MB
					268435456,  // 256MB
					1073741824, // 1GB
				},
			},
		),
		queueDepth: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "savepoint_executor_queue_depth",
				Help: "Current number of tasks waiting in the executor queue",
			},
		),
	}
}

func (m *checkpointMetrics) RecordSave(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.saves.WithLabelValues(status).Inc()
}

func (m *checkpointMetrics) RecordLoad(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.loads.WithLabelValues(status).Inc()
}

func (m *checkpointMetrics) RecordStageDuration(stage string, duration time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(duration.Seconds() * 1000)
}

func (m *checkpointMetrics) RecordStagedBytes(bytes int64) {
	if m == nil {
		return
	}
	if bytes > 0 {
		m.stagedBytes.Observe(float64(bytes))
	}
}

func (m *checkpointMetrics) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}
