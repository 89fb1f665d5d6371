// Package checkpoint implements the save/restore pipeline for a live
// virtual machine: an ordered executor sequencing save and load requests, a
// snapshot stage that briefly pauses the machine while copying its state
// into a staging buffer, a background write pool compressing that buffer
// into a versioned archive, and a synchronous restore stage that validates
// an archive before feeding it back into the machine.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/marmos91/savepoint/internal/logger"
	"github.com/marmos91/savepoint/pkg/archive"
	cperrors "github.com/marmos91/savepoint/pkg/checkpoint/errors"
	"github.com/marmos91/savepoint/pkg/machine"
	"github.com/marmos91/savepoint/pkg/metrics"
	"github.com/marmos91/savepoint/pkg/state"
)

// Observer is notified after an archive is durably committed to disk. The
// catalog uses it to index new archives.
type Observer interface {
	ArchiveWritten(ctx context.Context, path string)
}

// Config holds the engine's tunables.
type Config struct {
	// QueueSize bounds the executor and write pool queues. Default: 16.
	QueueSize int

	// WriteWorkers is the number of background compression workers.
	// Default: 1.
	WriteWorkers int

	// CompressionLevel is the deflate level for archive entries. Zero
	// selects the default level.
	CompressionLevel int

	// Version overrides the format version stamped into new archives.
	// Zero selects the engine's build version.
	Version uint32

	// MaxStagedBytes caps the size of a single staged snapshot. A snapshot
	// exceeding the cap fails the save before anything touches disk. Zero
	// means no cap.
	MaxStagedBytes int64

	// Slots configures numbered quick-save slot resolution.
	Slots SlotConfig
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		QueueSize:    16,
		WriteWorkers: 1,
	}
}

// Engine is the checkpoint engine for one machine.
type Engine struct {
	machine  machine.Machine
	registry *state.Registry
	notifier machine.Notifier
	metrics  metrics.CheckpointMetrics
	observer Observer
	preview  func() []byte

	version          uint32
	compressionLevel int
	maxStagedBytes   int64
	slots            SlotConfig

	exec *Executor
	pool *writePool

	// diskMu serializes all archive writers against all archive readers.
	diskMu sync.Mutex
}

// Option customizes an Engine.
type Option func(*Engine)

// WithNotifier routes short user-facing messages to n.
func WithNotifier(n machine.Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithMetrics enables metric collection.
func WithMetrics(m metrics.CheckpointMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithObserver registers an archive-written observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithPreview registers a preview-image capture, invoked while the machine
// is paused during a snapshot. An empty result omits the preview record.
func WithPreview(capture func() []byte) Option {
	return func(e *Engine) { e.preview = capture }
}

// New creates an engine for the given machine and component registry.
func New(m machine.Machine, reg *state.Registry, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		machine:          m,
		registry:         reg,
		notifier:         machine.NopNotifier{},
		version:          cfg.Version,
		compressionLevel: cfg.CompressionLevel,
		maxStagedBytes:   cfg.MaxStagedBytes,
		slots:            cfg.Slots.withDefaults(),
	}
	if e.version == 0 {
		e.version = archive.StateVersion
	}

	for _, opt := range opts {
		opt(e)
	}

	e.exec = NewExecutor(cfg.QueueSize)
	e.pool = newWritePool(e, cfg.QueueSize, cfg.WriteWorkers)
	return e
}

// Start launches the executor and the write pool.
func (e *Engine) Start(ctx context.Context) {
	e.exec.Start(ctx)
	e.pool.Start(ctx)
}

// Stop drains both queues so in-flight saves still reach disk.
func (e *Engine) Stop(timeout time.Duration) {
	e.exec.Stop(timeout)
	e.pool.Stop(timeout)
}

// QueueDepth returns the number of tasks waiting on the executor.
func (e *Engine) QueueDepth() int {
	return e.exec.Depth()
}

// Slots returns the engine's slot configuration.
func (e *Engine) Slots() SlotConfig {
	return e.slots
}

// SaveToFile captures the machine state and writes it to path. The call is
// fire-and-forget: the machine is paused and resumed on the executor while
// compression and disk I/O happen on the write pool. The returned Task
// resolves once the archive is durably on disk.
func (e *Engine) SaveToFile(ctx context.Context, path string) (*Task, error) {
	return e.save(ctx, path, false, -1)
}

// SaveToSlot captures the machine state into a numbered slot, honoring the
// backup policy.
func (e *Engine) SaveToSlot(ctx context.Context, slot int) (*Task, error) {
	return e.save(ctx, e.slots.Path(slot), e.slots.Backup, slot)
}

func (e *Engine) save(ctx context.Context, path string, backup bool, slot int) (*Task, error) {
	t := newTask("save")

	lc := logger.NewLogContext("save").WithArchive(path).WithTask(t.ID)
	if slot >= 0 {
		lc = lc.WithSlot(slot)
	}
	ctx = logger.WithContext(ctx, lc)

	run := func(ctx context.Context) error {
		list, preview, err := e.snapshot(ctx, path)
		if err != nil {
			e.notifyError(err)
			return err
		}

		// The write stage owns the disk exclusion lock from the moment it is
		// queued: a load submitted after this save blocks until the archive
		// is fully on disk. The pool worker releases the lock.
		e.diskMu.Lock()
		ok := e.pool.enqueue(writeRequest{
			ctx:     ctx,
			task:    t,
			target:  path,
			backup:  backup,
			list:    list,
			preview: preview,
		})
		if !ok {
			e.diskMu.Unlock()
			err := fmt.Errorf("write pool queue full, save to %s dropped", path)
			e.notifyError(err)
			return err
		}
		return errHandedOff
	}

	if err := e.submit(ctx, t, run); err != nil {
		return nil, err
	}
	return t, nil
}

// LoadFromFile restores the machine from the archive at path. The restore
// runs to completion on the executor, ordered after every previously queued
// save or load; the returned Task resolves when it finishes.
func (e *Engine) LoadFromFile(ctx context.Context, path string) (*Task, error) {
	return e.load(ctx, path, -1)
}

// LoadFromSlot restores the machine from a numbered slot, optionally from
// its backup file. An empty slot is a no-op reported through the notifier,
// not a failure.
func (e *Engine) LoadFromSlot(ctx context.Context, slot int, fromBackup bool) (*Task, error) {
	path := e.slots.Path(slot)
	if fromBackup {
		path = e.slots.BackupPath(slot)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		msg := fmt.Sprintf("Slot %d is empty.", slot)
		if fromBackup {
			msg = fmt.Sprintf("Slot %d has no backup.", slot)
		}
		logger.Info("Load skipped, slot empty", logger.Slot(slot), logger.Archive(path))
		e.notifier.Notify(msg)
		return completedTask("load", nil), nil
	}

	return e.load(ctx, path, slot)
}

func (e *Engine) load(ctx context.Context, path string, slot int) (*Task, error) {
	t := newTask("load")

	lc := logger.NewLogContext("load").WithArchive(path).WithTask(t.ID)
	if slot >= 0 {
		lc = lc.WithSlot(slot)
	}
	ctx = logger.WithContext(ctx, lc)

	run := func(ctx context.Context) error {
		err := e.restore(ctx, path)
		if err != nil {
			e.notifyError(err)
		}
		return err
	}

	if err := e.submit(ctx, t, run); err != nil {
		return nil, err
	}
	return t, nil
}

func (e *Engine) submit(ctx context.Context, t *Task, run func(ctx context.Context) error) error {
	if err := e.exec.submit(ctx, t, run); err != nil {
		return err
	}
	if e.metrics != nil {
		e.metrics.SetQueueDepth(e.exec.Depth())
	}
	return nil
}

// notifyError surfaces a fatal pipeline error through the notification
// channel, preferring the short user-facing message when one exists.
func (e *Engine) notifyError(err error) {
	var ce *cperrors.CheckpointError
	if errors.As(err, &ce) {
		e.notifier.Notify(ce.UserMessage())
		return
	}
	e.notifier.Notify(err.Error())
}
