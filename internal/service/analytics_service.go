package service

import (
	"context"
	"fmt"
	"time"

	"github.com/nadmax/medrank/internal/analytics"
	"github.com/nadmax/medrank/internal/apperr"
	"github.com/nadmax/medrank/internal/auth"
	"github.com/nadmax/medrank/internal/cache"
	"github.com/nadmax/medrank/internal/metrics"
	"github.com/nadmax/medrank/internal/ranking"
	"github.com/nadmax/medrank/internal/repository"
	"github.com/nadmax/medrank/internal/student"
	"github.com/nadmax/medrank/internal/task"
	"github.com/rs/zerolog"
)

type AnalyticsService interface {
	Rankings(ctx context.Context, actor auth.Actor) ([]ranking.StudentRanking, error)
	StudentReport(ctx context.Context, actor auth.Actor, studentID string) (*analytics.StudentReport, error)
	AdminReport(ctx context.Context, actor auth.Actor, period string) (*analytics.AdminReport, error)
	Students(ctx context.Context, actor auth.Actor) ([]student.Student, error)
}

type analyticsService struct {
	repo      repository.TaskRepository
	directory student.Directory
	rankings  cache.Rankings
	projector *analytics.Projector
	logger    zerolog.Logger
	now       func() time.Time
}

func NewAnalyticsService(
	repo repository.TaskRepository,
	directory student.Directory,
	rankings cache.Rankings,
	projector *analytics.Projector,
	logger zerolog.Logger,
	opts ...Option,
) AnalyticsService {
	if rankings == nil {
		rankings = cache.Nop{}
	}
	if projector == nil {
		projector = analytics.NewProjector(analytics.DefaultOptions())
	}

	o := buildOptions(opts)
	return &analyticsService{
		repo:      repo,
		directory: directory,
		rankings:  rankings,
		projector: projector,
		logger:    logger,
		now:       o.now,
	}
}

func (s *analyticsService) Rankings(ctx context.Context, actor auth.Actor) (rankings []ranking.StudentRanking, err error) {
	defer recordError("rankings", &err)

	if !actor.IsAdmin() {
		return nil, apperr.Unauthorized("only admins can view rankings")
	}

	v, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return v.rankings, nil
}

func (s *analyticsService) StudentReport(ctx context.Context, actor auth.Actor, studentID string) (report *analytics.StudentReport, err error) {
	defer recordError("student_report", &err)

	switch {
	case actor.IsAdmin():
	case actor.IsStudent():
		if studentID != actor.ID {
			return nil, apperr.Unauthorized("students can only view their own analytics")
		}
	default:
		return nil, apperr.Unauthorized("unknown role %q", actor.Role)
	}

	v, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	st, err := s.resolveStudent(ctx, studentID, v.tasks)
	if err != nil {
		return nil, err
	}

	r := s.projector.StudentReport(v.tasks, v.rankings, *st, s.now())
	return &r, nil
}

func (s *analyticsService) AdminReport(ctx context.Context, actor auth.Actor, period string) (report *analytics.AdminReport, err error) {
	defer recordError("admin_report", &err)

	if !actor.IsAdmin() {
		return nil, apperr.Unauthorized("only admins can view cohort analytics")
	}

	p, err := analytics.ParsePeriod(period)
	if err != nil {
		return nil, err
	}

	v, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	r := s.projector.AdminReport(v.tasks, v.rankings, len(v.students), p, s.now())
	return &r, nil
}

func (s *analyticsService) Students(ctx context.Context, actor auth.Actor) (students []student.Student, err error) {
	defer recordError("students", &err)

	if !actor.IsAdmin() {
		return nil, apperr.Unauthorized("only admins can list students")
	}

	students, err = s.directory.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	return students, nil
}

// view is a consistent read of the store with the rankings derived from it.
type view struct {
	tasks    []*task.Task
	students []student.Student
	rankings []ranking.StudentRanking
}

// load reads the directory, consults the rankings cache and only then lists
// tasks. A mutation that commits after the lookup bumps the generation, so
// rankings computed here are never stored under a generation newer than the
// snapshot they came from. Cache failures fall back to recomputation.
func (s *analyticsService) load(ctx context.Context) (*view, error) {
	students, err := s.directory.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	fingerprint := cache.Fingerprint(students)

	gen, cached, hit, lookupErr := s.rankings.Lookup(ctx, fingerprint)
	switch {
	case lookupErr != nil:
		metrics.RecordCacheLookup("error")
		s.logger.Warn().Err(lookupErr).Msg("Rankings cache lookup failed")
	case hit:
		metrics.RecordCacheLookup("hit")
	default:
		metrics.RecordCacheLookup("miss")
	}

	tasks, err := s.repo.List(ctx, task.Filter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	v := &view{tasks: tasks, students: students}
	if hit {
		v.rankings = cached
		return v, nil
	}

	start := time.Now()
	v.rankings = ranking.Compute(tasks, students)
	metrics.RecordRankingComputation(time.Since(start))

	if lookupErr == nil {
		if err := s.rankings.Store(ctx, gen, fingerprint, v.rankings); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to store rankings in cache")
		}
	}
	return v, nil
}

// resolveStudent prefers the directory entry. A student that has left the
// directory but still owns tasks is reported under the name stored on them.
func (s *analyticsService) resolveStudent(ctx context.Context, studentID string, tasks []*task.Task) (*student.Student, error) {
	st, err := s.directory.Get(ctx, studentID)
	if err == nil {
		return st, nil
	}
	if !apperr.Is(err, apperr.ENOTFOUND) {
		return nil, fmt.Errorf("failed to resolve student: %w", err)
	}

	for _, t := range tasks {
		if t.AssignedStudentID == studentID {
			return &student.Student{ID: studentID, Name: t.AssignedStudentName}, nil
		}
	}
	return nil, apperr.NotFound("student %s not found", studentID)
}
