// Package service implements the engine operations on top of the Task Store,
// enforcing role and ownership checks for every caller.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nadmax/medrank/internal/apperr"
	"github.com/nadmax/medrank/internal/auth"
	"github.com/nadmax/medrank/internal/cache"
	"github.com/nadmax/medrank/internal/events"
	"github.com/nadmax/medrank/internal/metrics"
	"github.com/nadmax/medrank/internal/repository"
	"github.com/nadmax/medrank/internal/student"
	"github.com/nadmax/medrank/internal/task"
	"github.com/rs/zerolog"
)

type (
	PatientInput struct {
		Name             string `json:"name" validate:"required,max=200"`
		Age              *int   `json:"age" validate:"required,gte=0"`
		PrimaryComplaint string `json:"primary_complaint" validate:"required"`
		Notes            string `json:"notes"`
	}
	CreateTaskInput struct {
		Title             string       `json:"title" validate:"required,max=200"`
		Description       string       `json:"description" validate:"required"`
		Patient           PatientInput `json:"patient"`
		AssignedStudentID string       `json:"assigned_student_id" validate:"required"`
	}
)

func (in *CreateTaskInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.AssignedStudentID = strings.TrimSpace(in.AssignedStudentID)
	in.Patient.Name = strings.TrimSpace(in.Patient.Name)
	in.Patient.PrimaryComplaint = strings.TrimSpace(in.Patient.PrimaryComplaint)
	in.Patient.Notes = strings.TrimSpace(in.Patient.Notes)
}

type TaskService interface {
	Create(ctx context.Context, actor auth.Actor, in CreateTaskInput) (*task.Task, error)
	Get(ctx context.Context, actor auth.Actor, taskID string) (*task.Task, error)
	List(ctx context.Context, actor auth.Actor, f task.Filter) ([]*task.Task, error)
	History(ctx context.Context, actor auth.Actor, taskID string) ([]task.Event, error)
	Accept(ctx context.Context, actor auth.Actor, taskID string) (*task.Task, error)
	Reject(ctx context.Context, actor auth.Actor, taskID, reason string) (*task.Task, error)
	Complete(ctx context.Context, actor auth.Actor, taskID string) (*task.Task, error)
	Score(ctx context.Context, actor auth.Actor, taskID string, score float64) (*task.Task, error)
}

type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source used for creation and completion stamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type taskService struct {
	repo      repository.TaskRepository
	directory student.Directory
	publisher events.Publisher
	rankings  cache.Rankings
	logger    zerolog.Logger
	now       func() time.Time
}

func NewTaskService(
	repo repository.TaskRepository,
	directory student.Directory,
	publisher events.Publisher,
	rankings cache.Rankings,
	logger zerolog.Logger,
	opts ...Option,
) TaskService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if rankings == nil {
		rankings = cache.Nop{}
	}

	o := buildOptions(opts)
	return &taskService{
		repo:      repo,
		directory: directory,
		publisher: publisher,
		rankings:  rankings,
		logger:    logger,
		now:       o.now,
	}
}

func (s *taskService) Create(ctx context.Context, actor auth.Actor, in CreateTaskInput) (t *task.Task, err error) {
	defer recordError("create", &err)

	if !actor.IsAdmin() {
		return nil, apperr.Unauthorized("only admins can create tasks")
	}

	in.normalize()
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	st, err := s.directory.Get(ctx, in.AssignedStudentID)
	if err != nil {
		if apperr.Is(err, apperr.ENOTFOUND) {
			return nil, apperr.Validation("assigned_student_id %s does not match a known student", in.AssignedStudentID)
		}
		return nil, fmt.Errorf("failed to resolve student: %w", err)
	}

	patient := task.Patient{
		Name:             in.Patient.Name,
		Age:              *in.Patient.Age,
		PrimaryComplaint: in.Patient.PrimaryComplaint,
		Notes:            in.Patient.Notes,
	}
	t = task.NewTask(in.Title, in.Description, patient, st.ID, st.Name, s.now())
	ev := task.NewEvent(t, actor.ID, string(actor.Role), task.ActionCreated, t.CreatedAt)

	if err := s.repo.Insert(ctx, t, ev); err != nil {
		return nil, fmt.Errorf("failed to store task: %w", err)
	}

	s.logger.Info().
		Str("task_id", t.ID).
		Str("student_id", t.AssignedStudentID).
		Str("actor_id", actor.ID).
		Msg("Task created")

	s.afterMutation(ctx, ev)
	return t, nil
}

func (s *taskService) Get(ctx context.Context, actor auth.Actor, taskID string) (t *task.Task, err error) {
	defer recordError("get", &err)

	if !actor.Role.Valid() {
		return nil, apperr.Unauthorized("unknown role %q", actor.Role)
	}

	t, err = s.repo.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if actor.IsStudent() && t.AssignedStudentID != actor.ID {
		return nil, apperr.Unauthorized("task %s is not assigned to you", taskID)
	}
	return t, nil
}

// List returns tasks ordered by creation time, then ID. Students only ever
// see their own tasks.
func (s *taskService) List(ctx context.Context, actor auth.Actor, f task.Filter) (tasks []*task.Task, err error) {
	defer recordError("list", &err)

	switch {
	case actor.IsAdmin():
	case actor.IsStudent():
		if f.StudentID != "" && f.StudentID != actor.ID {
			return nil, apperr.Unauthorized("students can only list their own tasks")
		}
		f.StudentID = actor.ID
	default:
		return nil, apperr.Unauthorized("unknown role %q", actor.Role)
	}

	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.Validation("unknown status %q", f.Status)
	}

	return s.repo.List(ctx, f)
}

func (s *taskService) History(ctx context.Context, actor auth.Actor, taskID string) (evs []task.Event, err error) {
	defer recordError("history", &err)

	if !actor.IsAdmin() {
		return nil, apperr.Unauthorized("only admins can read task history")
	}
	return s.repo.History(ctx, taskID)
}

func (s *taskService) Accept(ctx context.Context, actor auth.Actor, taskID string) (t *task.Task, err error) {
	defer recordError("accept", &err)

	if !actor.IsStudent() {
		return nil, apperr.Unauthorized("only the assigned student can accept a task")
	}
	return s.transition(ctx, actor, taskID, task.ActionAccepted, true, func(t *task.Task) error {
		return t.Accept()
	})
}

func (s *taskService) Reject(ctx context.Context, actor auth.Actor, taskID, reason string) (t *task.Task, err error) {
	defer recordError("reject", &err)

	if !actor.IsStudent() {
		return nil, apperr.Unauthorized("only the assigned student can reject a task")
	}
	if strings.TrimSpace(reason) == "" {
		return nil, apperr.Validation("reject_reason is required")
	}
	return s.transition(ctx, actor, taskID, task.ActionRejected, true, func(t *task.Task) error {
		return t.Reject(reason)
	})
}

func (s *taskService) Complete(ctx context.Context, actor auth.Actor, taskID string) (t *task.Task, err error) {
	defer recordError("complete", &err)

	if !actor.IsStudent() {
		return nil, apperr.Unauthorized("only the assigned student can complete a task")
	}
	return s.transition(ctx, actor, taskID, task.ActionCompleted, true, func(t *task.Task) error {
		return t.Complete(s.now())
	})
}

func (s *taskService) Score(ctx context.Context, actor auth.Actor, taskID string, score float64) (t *task.Task, err error) {
	defer recordError("score", &err)

	if !actor.IsAdmin() {
		return nil, apperr.Unauthorized("only admins can score tasks")
	}
	if err := task.ValidateScore(score); err != nil {
		return nil, err
	}
	return s.transition(ctx, actor, taskID, task.ActionScored, false, func(t *task.Task) error {
		return t.Score(score)
	})
}

// transition applies mutate to a copy of the stored task and swaps it in only
// if nobody changed the task in the meantime. Losing the race is reported as
// an invalid transition, since the precondition the caller relied on no
// longer holds.
func (s *taskService) transition(
	ctx context.Context,
	actor auth.Actor,
	taskID string,
	action task.Action,
	ownerOnly bool,
	mutate func(*task.Task) error,
) (*task.Task, error) {
	prev, err := s.repo.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if ownerOnly && prev.AssignedStudentID != actor.ID {
		return nil, apperr.Unauthorized("task %s is not assigned to you", taskID)
	}

	next := prev.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}

	ev := task.NewEvent(next, actor.ID, string(actor.Role), action, s.now())
	if err := s.repo.Update(ctx, next, prev, ev); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperr.InvalidTransition("task %s was modified concurrently", taskID)
		}
		if apperr.Is(err, apperr.ENOTFOUND) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	s.logger.Info().
		Str("task_id", taskID).
		Str("action", string(action)).
		Str("actor_id", actor.ID).
		Str("status", string(next.Status)).
		Msg("Task updated")

	s.afterMutation(ctx, ev)
	return next, nil
}

// afterMutation runs once the mutation is committed. Its failures are logged
// and never reported to the caller.
func (s *taskService) afterMutation(ctx context.Context, ev *task.Event) {
	metrics.RecordTransition(ev.Action)

	ctx = context.WithoutCancel(ctx)
	if err := s.rankings.Invalidate(ctx); err != nil {
		s.logger.Warn().Err(err).Str("task_id", ev.TaskID).Msg("Failed to invalidate rankings cache")
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn().Err(err).Str("event_id", ev.ID).Str("action", string(ev.Action)).Msg("Failed to publish task event")
	}
}

func recordError(operation string, err *error) {
	if *err != nil {
		metrics.RecordOperationError(operation, apperr.ErrorCode(*err))
	}
}
