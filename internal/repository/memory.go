package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/nadmax/medrank/internal/apperr"
	"github.com/nadmax/medrank/internal/task"
)

type record struct {
	mu   sync.Mutex
	task *task.Task
}

// MemoryTaskRepository keeps tasks in a map. Each record has its own lock so a
// mutation only serializes against other mutations of the same task.
type MemoryTaskRepository struct {
	mu      sync.RWMutex
	records map[string]*record

	eventsMu sync.Mutex
	events   map[string][]task.Event
}

func NewMemoryTaskRepository() *MemoryTaskRepository {
	return &MemoryTaskRepository{
		records: make(map[string]*record),
		events:  make(map[string][]task.Event),
	}
}

func (r *MemoryTaskRepository) Insert(_ context.Context, t *task.Task, ev *task.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[t.ID]; exists {
		return fmt.Errorf("task %s already exists", t.ID)
	}
	r.records[t.ID] = &record{task: t.Clone()}
	r.appendEvent(ev)

	return nil
}

func (r *MemoryTaskRepository) Get(_ context.Context, taskID string) (*task.Task, error) {
	rec := r.lookup(taskID)
	if rec == nil {
		return nil, apperr.NotFound("task %s not found", taskID)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.task.Clone(), nil
}

func (r *MemoryTaskRepository) List(_ context.Context, f task.Filter) ([]*task.Task, error) {
	r.mu.RLock()
	recs := make([]*record, 0, len(r.records))
	for _, rec := range r.records {
		recs = append(recs, rec)
	}
	r.mu.RUnlock()

	tasks := make([]*task.Task, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		if f.Match(rec.task) {
			tasks = append(tasks, rec.task.Clone())
		}
		rec.mu.Unlock()
	}

	task.Sort(tasks)
	return tasks, nil
}

func (r *MemoryTaskRepository) Update(_ context.Context, next, prev *task.Task, ev *task.Event) error {
	rec := r.lookup(prev.ID)
	if rec == nil {
		return apperr.NotFound("task %s not found", prev.ID)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.task.Status != prev.Status || rec.task.IsScored() != prev.IsScored() {
		return ErrConflict
	}
	rec.task = next.Clone()
	r.appendEvent(ev)

	return nil
}

func (r *MemoryTaskRepository) History(_ context.Context, taskID string) ([]task.Event, error) {
	if r.lookup(taskID) == nil {
		return nil, apperr.NotFound("task %s not found", taskID)
	}

	r.eventsMu.Lock()
	defer r.eventsMu.Unlock()

	events := make([]task.Event, len(r.events[taskID]))
	copy(events, r.events[taskID])
	return events, nil
}

func (r *MemoryTaskRepository) Close() error {
	return nil
}

func (r *MemoryTaskRepository) lookup(taskID string) *record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.records[taskID]
}

func (r *MemoryTaskRepository) appendEvent(ev *task.Event) {
	if ev == nil {
		return
	}

	r.eventsMu.Lock()
	r.events[ev.TaskID] = append(r.events[ev.TaskID], *ev)
	r.eventsMu.Unlock()
}
