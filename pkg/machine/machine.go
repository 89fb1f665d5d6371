// Package machine declares the collaborator interfaces the checkpoint
// engine consumes. The execution engine itself lives outside this module;
// these interfaces are its boundary.
package machine

import (
	"context"
	"io"
)

// Machine is the live virtual machine the engine checkpoints. Pause blocks
// until every in-flight execution unit reaches a safe point; machine memory
// is only mutated while paused.
type Machine interface {
	// Pause suspends execution, blocking until a safe point is reached.
	Pause(ctx context.Context) error

	// Resume restarts execution. Resuming an already running machine is a
	// no-op.
	Resume()

	// HasValidState reports whether the machine currently holds state
	// worth capturing (running or paused, but booted).
	HasValidState() bool

	// ClearExecutionCaches drops derived execution state that would
	// otherwise reference stale memory contents after a restore.
	ClearExecutionCaches()

	// SaveInternals serializes the engine-level internal structures
	// (register banks, scheduler state) that are not modeled as components.
	SaveInternals(w io.Writer) error

	// LoadInternals deserializes the internal structures. Called after all
	// components have been restored, because internals may depend on
	// memory contents already being in place.
	LoadInternals(r io.Reader) error
}

// Notifier receives short user-facing messages from the engine ("slot 2 is
// empty", fatal load errors). Implementations must not block.
type Notifier interface {
	Notify(msg string)
}

// NopNotifier discards all messages.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(string) {}
