package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nadmax/medrank/internal/metrics"
	"github.com/nadmax/medrank/internal/task"
	"github.com/rs/zerolog"
)

var ErrQueueFull = errors.New("event queue is full")

type Handler func(ctx context.Context, ev *task.Event) error

// Dispatcher runs registered handlers for each published event on a single
// background goroutine. Publish never blocks; events are dropped with
// ErrQueueFull when the buffer is exhausted.
type Dispatcher struct {
	id       string
	mu       sync.RWMutex
	handlers map[task.Action][]Handler
	events   chan *task.Event
	stop     chan struct{}
	done     chan struct{}
	started  sync.Once
	stopped  sync.Once
	running  bool
	logger   zerolog.Logger
}

func NewDispatcher(id string, buffer int, logger zerolog.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = 1
	}
	return &Dispatcher{
		id:       id,
		handlers: make(map[task.Action][]Handler),
		events:   make(chan *task.Event, buffer),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.With().Str("dispatcher", id).Logger(),
	}
}

func (d *Dispatcher) RegisterHandler(action task.Action, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[action] = append(d.handlers[action], handler)
}

func (d *Dispatcher) Publish(_ context.Context, ev *task.Event) error {
	select {
	case d.events <- ev:
		metrics.RecordEventPublished("dispatcher", nil)
		return nil
	default:
		metrics.RecordEventPublished("dispatcher", ErrQueueFull)
		return ErrQueueFull
	}
}

// Start processes events until ctx is cancelled or Stop is called. Events
// already queued at that point are still handled before Start returns.
func (d *Dispatcher) Start(ctx context.Context) {
	first := false
	d.started.Do(func() {
		d.mu.Lock()
		d.running = true
		d.mu.Unlock()
		first = true
	})
	if !first {
		return
	}
	defer close(d.done)

	d.logger.Info().Msg("Dispatcher started")

	for {
		select {
		case <-d.stop:
			d.drain(ctx)
			d.logger.Info().Msg("Dispatcher stopped")
			return
		case <-ctx.Done():
			d.drain(context.WithoutCancel(ctx))
			d.logger.Info().Msg("Dispatcher stopped")
			return
		case ev := <-d.events:
			d.processEvent(ctx, ev)
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) {
	for {
		select {
		case ev := <-d.events:
			d.processEvent(ctx, ev)
		default:
			return
		}
	}
}

func (d *Dispatcher) processEvent(ctx context.Context, ev *task.Event) {
	d.mu.RLock()
	handlers := d.handlers[ev.Action]
	d.mu.RUnlock()

	if len(handlers) == 0 {
		d.logger.Debug().Str("event_id", ev.ID).Str("action", string(ev.Action)).Msg("No handler for event")
		return
	}

	for _, h := range handlers {
		start := time.Now()
		err := h(ctx, ev)
		metrics.RecordEventHandled(ev.Action, time.Since(start), err)

		if err != nil {
			d.logger.Error().
				Err(err).
				Str("event_id", ev.ID).
				Str("task_id", ev.TaskID).
				Str("action", string(ev.Action)).
				Msg("Event handler failed")
			continue
		}
		d.logger.Debug().
			Str("event_id", ev.ID).
			Str("action", string(ev.Action)).
			Msg("Event handled")
	}
}

// Stop signals Start to return and waits for queued events to be handled.
func (d *Dispatcher) Stop() {
	d.stopped.Do(func() { close(d.stop) })
	if d.isRunning() {
		<-d.done
	}
}

func (d *Dispatcher) isRunning() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}
