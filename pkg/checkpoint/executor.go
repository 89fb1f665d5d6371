package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/savepoint/internal/logger"
)

// errHandedOff is returned by a task body that transferred ownership of its
// Task to the write pool; the pool, not the executor, resolves it.
var errHandedOff = errors.New("task handed off to write pool")

// queuedTask pairs a Task handle with the function that resolves it.
type queuedTask struct {
	ctx  context.Context
	task *Task
	run  func(ctx context.Context) error
}

// Executor is the single-threaded ordered command queue that sequences all
// save and load requests. One goroutine drains the queue in FIFO order, so a
// load is strictly ordered after every previously queued save or load. The
// compress-to-disk stage runs off the executor on the write pool; everything
// else a task does runs on the executor goroutine itself.
type Executor struct {
	queue chan queuedTask

	wg        sync.WaitGroup
	stopCh    chan struct{}
	stoppedCh chan struct{}

	mu      sync.Mutex
	started bool
}

// NewExecutor creates an executor with the given queue capacity.
func NewExecutor(queueSize int) *Executor {
	if queueSize <= 0 {
		queueSize = 16
	}
	return &Executor{
		queue:     make(chan queuedTask, queueSize),
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Start begins draining the queue.
func (e *Executor) Start(ctx context.Context) {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return
	}
	e.started = true
	e.mu.Unlock()

	logger.Info("Starting checkpoint executor")

	e.wg.Add(1)
	go e.loop(ctx)

	go func() {
		e.wg.Wait()
		close(e.stoppedCh)
	}()
}

// Stop drains queued tasks and shuts the executor down. Tasks still queued
// when the timeout expires never resolve; callers waiting on them must use
// Task.Wait with a context.
func (e *Executor) Stop(timeout time.Duration) {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	logger.Info("Stopping checkpoint executor", logger.KeyQueueDepth, len(e.queue))

	close(e.stopCh)

	select {
	case <-e.stoppedCh:
		logger.Info("Checkpoint executor stopped gracefully")
	case <-time.After(timeout):
		logger.Warn("Checkpoint executor stop timed out", logger.KeyQueueDepth, len(e.queue))
	}
}

// Depth returns the number of tasks waiting in the queue.
func (e *Executor) Depth() int {
	return len(e.queue)
}

// submit enqueues a task without blocking. A full queue resolves the task
// immediately with an error rather than stalling the caller.
func (e *Executor) submit(ctx context.Context, t *Task, run func(ctx context.Context) error) error {
	e.mu.Lock()
	started := e.started
	e.mu.Unlock()
	if !started {
		return fmt.Errorf("executor not started")
	}

	select {
	case e.queue <- queuedTask{ctx: ctx, task: t, run: run}:
		return nil
	default:
		logger.Warn("Executor queue full, rejecting task",
			logger.TaskID(t.ID), logger.Operation(t.Op))
		return fmt.Errorf("executor queue full (%d pending)", len(e.queue))
	}
}

func (e *Executor) loop(ctx context.Context) {
	defer e.wg.Done()

	for {
		select {
		case <-e.stopCh:
			e.drain()
			return

		case <-ctx.Done():
			return

		case qt, ok := <-e.queue:
			if !ok {
				return
			}
			e.process(qt)
		}
	}
}

// drain runs remaining tasks during shutdown so queued saves still reach
// disk.
func (e *Executor) drain() {
	for {
		select {
		case qt, ok := <-e.queue:
			if !ok {
				return
			}
			e.process(qt)
		default:
			return
		}
	}
}

func (e *Executor) process(qt queuedTask) {
	err := qt.run(qt.ctx)
	if errors.Is(err, errHandedOff) {
		return
	}
	qt.task.complete(err)
}
