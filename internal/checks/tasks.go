package checks

import (
	"context"
	"errors"

	"github.com/bissquit/healthboard/internal/tasks"
)

// Submitter queues background tasks.
type Submitter interface {
	Submit(ctx context.Context, task tasks.Task) (<-chan tasks.Result, error)
}

// TasksBackend submits a trivial task and waits for its result.
type TasksBackend struct {
	base
	pool Submitter
}

// NewTasksBackend creates a background task check.
func NewTasksBackend(pool Submitter) *TasksBackend {
	return &TasksBackend{
		base: base{name: "Periodic Tasks", slug: "celery", critical: true},
		pool: pool,
	}
}

func add(a, b int) tasks.Task {
	return func(context.Context) (any, error) {
		return a + b, nil
	}
}

// Check implements Backend.
func (b *TasksBackend) Check(ctx context.Context) error {
	resultCh, err := b.pool.Submit(ctx, add(4, 4))
	if err != nil {
		if errors.Is(err, tasks.ErrPoolStopped) {
			return Unavailable("Task pool is not running", err)
		}
		return Unavailable("Unable to submit task", err)
	}

	select {
	case <-ctx.Done():
		return Unavailable("Periodic task timed out", ctx.Err())
	case result := <-resultCh:
		if result.Err != nil {
			return Unavailable("Periodic task failed", result.Err)
		}
		if v, ok := result.Value.(int); !ok || v != 8 {
			return UnexpectedResult("Periodic task returned wrong result", nil)
		}
		return nil
	}
}
