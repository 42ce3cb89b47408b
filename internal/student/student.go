// Package student provides read-only lookup of the students tasks can be
// assigned to.
package student

import (
	"context"
	"sort"
	"sync"

	"github.com/nadmax/medrank/internal/apperr"
)

type Student struct {
	ID    string `json:"id" mapstructure:"id"`
	Name  string `json:"name" mapstructure:"name"`
	Email string `json:"email" mapstructure:"email"`
}

type Directory interface {
	Get(ctx context.Context, id string) (*Student, error)
	List(ctx context.Context) ([]Student, error)
}

// MemoryDirectory is a fixed directory, typically seeded from configuration.
type MemoryDirectory struct {
	mu       sync.RWMutex
	students map[string]Student
}

func NewMemoryDirectory(students []Student) *MemoryDirectory {
	d := &MemoryDirectory{students: make(map[string]Student, len(students))}
	for _, s := range students {
		d.students[s.ID] = s
	}
	return d
}

func (d *MemoryDirectory) Get(_ context.Context, id string) (*Student, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s, ok := d.students[id]
	if !ok {
		return nil, apperr.NotFound("student %s not found", id)
	}
	return &s, nil
}

// List returns students ordered by name, then ID.
func (d *MemoryDirectory) List(_ context.Context) ([]Student, error) {
	d.mu.RLock()
	out := make([]Student, 0, len(d.students))
	for _, s := range d.students {
		out = append(out, s)
	}
	d.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
