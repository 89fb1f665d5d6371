package logger

import (
	"context"
	"time"
)

// contextKey keeps the context value key private to this package.
type contextKey struct{}

var logContextKey = contextKey{}

// LogContext carries the identity of a running checkpoint operation so the
// *Ctx logging helpers can stamp every line with it.
type LogContext struct {
	TraceID   string    // OpenTelemetry trace ID
	SpanID    string    // OpenTelemetry span ID
	Operation string    // Checkpoint operation (save, load, verify)
	Archive   string    // Target archive path
	TaskID    string    // Executor task ID
	Slot      int       // Slot number (-1 when not slot-addressed)
	StartTime time.Time // For duration calculation
}

// WithContext attaches lc to ctx for later retrieval by the *Ctx helpers.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext returns the attached LogContext, or nil.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext starts a LogContext for operation with the clock running
// and no slot assigned.
func NewLogContext(operation string) *LogContext {
	return &LogContext{
		Operation: operation,
		Slot:      -1,
		StartTime: time.Now(),
	}
}

// Clone returns a copy; the With* builders mutate copies so a LogContext
// already attached to a context never changes underneath a reader.
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	return &LogContext{
		TraceID:   lc.TraceID,
		SpanID:    lc.SpanID,
		Operation: lc.Operation,
		Archive:   lc.Archive,
		TaskID:    lc.TaskID,
		Slot:      lc.Slot,
		StartTime: lc.StartTime,
	}
}

func (lc *LogContext) WithArchive(archive string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Archive = archive
	}
	return clone
}

func (lc *LogContext) WithTask(taskID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TaskID = taskID
	}
	return clone
}

func (lc *LogContext) WithSlot(slot int) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Slot = slot
	}
	return clone
}

func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs is the elapsed time since StartTime in milliseconds.
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
