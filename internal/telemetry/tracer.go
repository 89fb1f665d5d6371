package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for checkpoint operations.
// These follow OpenTelemetry semantic conventions where applicable.
const (
	// ========================================================================
	// Checkpoint operation attributes
	// ========================================================================
	AttrOperation = "checkpoint.operation" // save, load, verify
	AttrStage     = "checkpoint.stage"     // snapshot, write, restore
	AttrTaskID    = "checkpoint.task_id"   // executor task ID
	AttrArchive   = "checkpoint.archive"   // archive path
	AttrSlot      = "checkpoint.slot"      // slot number
	AttrVersion   = "checkpoint.version"   // archive format version
	AttrComponent = "checkpoint.component" // component name
	AttrEntries   = "checkpoint.entries"   // archive entry count
	AttrBytes     = "checkpoint.bytes"     // staged or written byte count
	AttrStatus    = "checkpoint.status"    // terminal status of the operation
)

// Span names for operations.
// Format: <component>.<operation>
const (
	SpanSnapshot = "checkpoint.snapshot"
	SpanWrite    = "checkpoint.write"
	SpanRestore  = "checkpoint.restore"
	SpanVerify   = "catalog.verify"
)

// Operation returns an attribute for the checkpoint operation name
func Operation(name string) attribute.KeyValue {
	return attribute.String(AttrOperation, name)
}

// Stage returns an attribute for the pipeline stage name
func Stage(name string) attribute.KeyValue {
	return attribute.String(AttrStage, name)
}

// TaskID returns an attribute for the executor task ID
func TaskID(id string) attribute.KeyValue {
	return attribute.String(AttrTaskID, id)
}

// Archive returns an attribute for the archive path
func Archive(path string) attribute.KeyValue {
	return attribute.String(AttrArchive, path)
}

// Slot returns an attribute for a slot number
func Slot(n int) attribute.KeyValue {
	return attribute.Int(AttrSlot, n)
}

// Version returns an attribute for an archive format version
func Version(v uint32) attribute.KeyValue {
	return attribute.Int64(AttrVersion, int64(v))
}

// Component returns an attribute for a component name
func Component(name string) attribute.KeyValue {
	return attribute.String(AttrComponent, name)
}

// Entries returns an attribute for an archive entry count
func Entries(n int) attribute.KeyValue {
	return attribute.Int(AttrEntries, n)
}

// Bytes returns an attribute for a byte count
func Bytes(n int64) attribute.KeyValue {
	return attribute.Int64(AttrBytes, n)
}

// Status returns an attribute for the terminal status of an operation
func Status(s string) attribute.KeyValue {
	return attribute.String(AttrStatus, s)
}

// StartStageSpan starts a span for a checkpoint pipeline stage with the
// archive path attached.
func StartStageSpan(ctx context.Context, name string, archive string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := make([]attribute.KeyValue, 0, len(attrs)+1)
	all = append(all, Archive(archive))
	all = append(all, attrs...)
	return Tracer().Start(ctx, name, trace.WithAttributes(all...))
}
