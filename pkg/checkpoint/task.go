package checkpoint

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Task is the caller's handle on one queued save or load operation. Saves
// are fire-and-forget: the handle resolves once the archive is durably on
// disk (or the pipeline failed). Loads resolve when the restore completes.
type Task struct {
	// ID uniquely identifies the task across the process lifetime.
	ID string

	// Op is the operation name: "save" or "load".
	Op string

	done chan struct{}
	mu   sync.Mutex
	err  error
}

func newTask(op string) *Task {
	return &Task{
		ID:   uuid.NewString(),
		Op:   op,
		done: make(chan struct{}),
	}
}

// completedTask returns a task that already resolved with err. Used for
// operations that short-circuit before queueing, such as loading an empty
// slot.
func completedTask(op string, err error) *Task {
	t := newTask(op)
	t.complete(err)
	return t
}

// complete resolves the task exactly once. A second call panics on the
// closed channel, which is a bug in the pipeline, not a caller error.
func (t *Task) complete(err error) {
	t.mu.Lock()
	t.err = err
	t.mu.Unlock()
	close(t.done)
}

// Done returns a channel closed when the task resolves.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err returns the task's outcome. Only meaningful after Done is closed.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Wait blocks until the task resolves or ctx is cancelled, returning the
// task's outcome or the context error.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
