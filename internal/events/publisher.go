// Package events fans task lifecycle events out to message brokers and
// in-process handlers.
package events

import (
	"context"
	"errors"

	"github.com/nadmax/medrank/internal/task"
)

type Publisher interface {
	Publish(ctx context.Context, ev *task.Event) error
}

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev *task.Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Nop struct{}

func (Nop) Publish(context.Context, *task.Event) error { return nil }
