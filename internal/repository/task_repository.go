// Package repository defines the Task Store persistence contract and its
// in-memory implementation.
package repository

import (
	"context"
	"errors"

	"github.com/nadmax/medrank/internal/task"
)

// ErrConflict is returned by Update when the stored task no longer matches the
// state the caller read before mutating it.
var ErrConflict = errors.New("task was modified concurrently")

type TaskRepository interface {
	// Insert stores a new task together with its creation event.
	Insert(ctx context.Context, t *task.Task, ev *task.Event) error
	// Get returns a copy of the task or an apperr.ENOTFOUND error.
	Get(ctx context.Context, taskID string) (*task.Task, error)
	// List returns copies of the matching tasks ordered by task.Sort.
	List(ctx context.Context, f task.Filter) ([]*task.Task, error)
	// Update replaces prev with next iff the stored task still has prev's
	// status and scored state, and appends ev atomically with the change.
	Update(ctx context.Context, next, prev *task.Task, ev *task.Event) error
	// History returns the events of a task, oldest first.
	History(ctx context.Context, taskID string) ([]task.Event, error)
	Close() error
}
