package logger

import (
	"log/slog"
)

// Field keys shared by every log statement. One key per concept keeps the
// aggregated logs queryable.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for operation correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for stage tracking

	// ========================================================================
	// Checkpoint Operations
	// ========================================================================
	KeyOperation = "operation" // Checkpoint operation: save, load, verify
	KeyStage     = "stage"     // Pipeline stage: snapshot, write, restore
	KeyTaskID    = "task_id"   // Executor task ID
	KeyArchive   = "archive"   // Archive path
	KeySlot      = "slot"      // Slot number
	KeyComponent = "component" // Component name
	KeyEntry     = "entry"     // Archive entry name
	KeyVersion   = "version"   // Archive format version (hex)

	// ========================================================================
	// File System
	// ========================================================================
	KeyPath    = "path"     // Full file path
	KeyOldPath = "old_path" // Source path for rename operations
	KeyNewPath = "new_path" // Destination path for rename operations
	KeySize    = "size"     // Byte size

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyDigest     = "digest"      // Archive content digest
	KeyQueueDepth = "queue_depth" // Executor queue depth
	KeyWorkers    = "workers"     // Worker count
)

// ============================================================================
// Typed attribute constructors
// ============================================================================

// TraceID is the trace identifier of the surrounding span.
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID is the span identifier of the surrounding span.
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// Operation names the checkpoint operation: save, load, or verify.
func Operation(name string) slog.Attr {
	return slog.String(KeyOperation, name)
}

// Stage names the pipeline stage: snapshot, write, or restore.
func Stage(name string) slog.Attr {
	return slog.String(KeyStage, name)
}

func TaskID(id string) slog.Attr {
	return slog.String(KeyTaskID, id)
}

func Archive(path string) slog.Attr {
	return slog.String(KeyArchive, path)
}

func Slot(n int) slog.Attr {
	return slog.Int(KeySlot, n)
}

func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}

func Entry(name string) slog.Attr {
	return slog.String(KeyEntry, name)
}

func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

func Size(s int64) slog.Attr {
	return slog.Int64(KeySize, s)
}

func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err renders the error message; a nil error logs as an empty string.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
