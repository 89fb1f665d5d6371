package checkpoint

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/marmos91/savepoint/internal/logger"
	"github.com/marmos91/savepoint/internal/telemetry"
	"github.com/marmos91/savepoint/pkg/archive"
	cperrors "github.com/marmos91/savepoint/pkg/checkpoint/errors"
	"github.com/marmos91/savepoint/pkg/state/staging"
)

// writeRequest carries one staged snapshot from the executor to the write
// pool. The staging list is exclusively owned by the pool from enqueue
// onward and is discarded once the archive is committed.
type writeRequest struct {
	ctx     context.Context
	task    *Task
	target  string
	backup  bool
	list    *staging.List
	preview []byte
}

// writePool compresses staged snapshots to disk off the executor, so a save
// never blocks the machine beyond its brief snapshot pause.
type writePool struct {
	engine *Engine

	queue   chan writeRequest
	workers int

	wg        sync.WaitGroup
	stopCh    chan struct{}
	stoppedCh chan struct{}

	mu      sync.Mutex
	started bool
}

func newWritePool(e *Engine, queueSize, workers int) *writePool {
	if queueSize <= 0 {
		queueSize = 16
	}
	if workers <= 0 {
		workers = 1
	}
	return &writePool{
		engine:    e,
		queue:     make(chan writeRequest, queueSize),
		workers:   workers,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func (p *writePool) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	logger.Info("Starting archive write pool", logger.KeyWorkers, p.workers)

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}

	go func() {
		p.wg.Wait()
		close(p.stoppedCh)
	}()
}

// Stop drains pending writes so queued saves still reach disk.
func (p *writePool) Stop(timeout time.Duration) {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	logger.Info("Stopping archive write pool", logger.KeyQueueDepth, len(p.queue))

	close(p.stopCh)

	select {
	case <-p.stoppedCh:
		logger.Info("Archive write pool stopped gracefully")
	case <-time.After(timeout):
		logger.Warn("Archive write pool stop timed out", logger.KeyQueueDepth, len(p.queue))
	}
}

// enqueue hands a staged snapshot to the pool. Returns false when the queue
// is full; the caller resolves the task with the failure.
func (p *writePool) enqueue(req writeRequest) bool {
	select {
	case p.queue <- req:
		return true
	default:
		logger.Warn("Write pool queue full, rejecting save",
			logger.TaskID(req.task.ID), logger.Archive(req.target))
		return false
	}
}

func (p *writePool) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			p.drainQueue()
			return

		case <-ctx.Done():
			// Still drain: each queued request owns the disk lock and must
			// release it, and queued saves should reach disk when they can.
			p.drainQueue()
			return

		case req, ok := <-p.queue:
			if !ok {
				return
			}
			p.process(req)
		}
	}
}

func (p *writePool) drainQueue() {
	for {
		select {
		case req, ok := <-p.queue:
			if !ok {
				return
			}
			p.process(req)
		default:
			return
		}
	}
}

func (p *writePool) process(req writeRequest) {
	start := time.Now()
	err := p.engine.writeArchive(req)
	elapsed := time.Since(start)

	if p.engine.metrics != nil {
		p.engine.metrics.RecordSave(statusOf(err), elapsed)
		p.engine.metrics.RecordStageDuration("write", elapsed)
	}

	if err != nil {
		logger.ErrorCtx(req.ctx, "Archive write failed",
			logger.Archive(req.target), logger.Err(err))
		p.engine.notifyError(err)
	} else {
		logger.InfoCtx(req.ctx, "Archive written",
			logger.Archive(req.target),
			logger.DurationMs(float64(elapsed.Milliseconds())))
	}

	req.task.complete(err)
}

// writeArchive compresses one staged snapshot into the target archive. The
// disk exclusion lock was already acquired when the request was enqueued, so
// the write stage owns the archive path for its entire duration, including
// the time spent queued behind the pool; a load queued after a save can
// never observe a half-written file. Failures discard the temp file and
// leave any previous archive at the target untouched.
func (e *Engine) writeArchive(req writeRequest) (err error) {
	defer e.diskMu.Unlock()

	ctx, span := telemetry.StartStageSpan(req.ctx, telemetry.SpanWrite, req.target,
		telemetry.Entries(len(req.list.Entries())),
		telemetry.Bytes(req.list.Len()))
	defer func() {
		telemetry.RecordError(ctx, err)
		span.End()
	}()

	if err := ctx.Err(); err != nil {
		return cperrors.NewCancelled(req.target, err)
	}

	if req.backup {
		if err := e.backupExisting(ctx, req.target); err != nil {
			return err
		}
	}

	w, err := archive.Create(req.target, e.version, e.compressionLevel)
	if err != nil {
		return err
	}

	if err := w.WritePreview(req.preview); err != nil {
		w.Abort()
		return fmt.Errorf("writing archive %s: %w", req.target, err)
	}

	for _, entry := range req.list.Entries() {
		if err := ctx.Err(); err != nil {
			w.Abort()
			return cperrors.NewCancelled(req.target, err)
		}

		data, err := req.list.Region(entry)
		if err != nil {
			w.Abort()
			return fmt.Errorf("writing archive %s: %w", req.target, err)
		}
		if err := w.WriteEntry(entry.Name, data); err != nil {
			w.Abort()
			return fmt.Errorf("writing archive %s: %w", req.target, err)
		}
	}

	if err := w.Commit(); err != nil {
		return err
	}

	if e.observer != nil {
		e.observer.ArchiveWritten(ctx, req.target)
	}

	return nil
}

// backupExisting renames an existing archive at target to its .backup
// suffix before a new save replaces it.
func (e *Engine) backupExisting(ctx context.Context, target string) error {
	if _, err := os.Stat(target); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return cperrors.NewCannotCreateFile(target, err)
	}

	backup := target + BackupSuffix
	if err := os.Rename(target, backup); err != nil {
		return cperrors.NewCannotCreateFile(target, err)
	}

	logger.InfoCtx(ctx, "Existing archive moved to backup",
		logger.KeyOldPath, target, logger.KeyNewPath, backup)
	return nil
}

// statusOf maps a pipeline outcome to a metrics status label.
func statusOf(err error) string {
	if err == nil {
		return "ok"
	}
	if code := cperrors.CodeOf(err); code != 0 {
		return code.String()
	}
	return "error"
}
