package app

import (
	"context"
	"time"

	"github.com/nadmax/medrank/internal/metrics"
	"github.com/nadmax/medrank/internal/repository"
	"github.com/nadmax/medrank/internal/task"
	"github.com/rs/zerolog"
)

// StatusCollector keeps the tasks-by-status gauge in line with the store.
type StatusCollector struct {
	repo     repository.TaskRepository
	interval time.Duration
	logger   zerolog.Logger
}

func NewStatusCollector(repo repository.TaskRepository, interval time.Duration, logger zerolog.Logger) *StatusCollector {
	return &StatusCollector{repo: repo, interval: interval, logger: logger}
}

func (c *StatusCollector) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.Collect(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Collect(ctx)
		}
	}
}

func (c *StatusCollector) Collect(ctx context.Context) {
	tasks, err := c.repo.List(ctx, task.Filter{})
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to get tasks for metrics")
		return
	}

	counts := make(map[task.TaskStatus]int)
	for _, t := range tasks {
		counts[t.Status]++
	}
	metrics.UpdateTasksByStatus(counts)
}

// OnEvent refreshes the gauge right after a mutation instead of waiting for
// the next tick.
func (c *StatusCollector) OnEvent(ctx context.Context, _ *task.Event) error {
	c.Collect(ctx)
	return nil
}
