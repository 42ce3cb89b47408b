package service

import (
	"context"
	"testing"
	"time"

	"github.com/nadmax/medrank/internal/analytics"
	"github.com/nadmax/medrank/internal/apperr"
	"github.com/nadmax/medrank/internal/events"
	"github.com/nadmax/medrank/internal/ranking"
	"github.com/nadmax/medrank/internal/repository"
	"github.com/nadmax/medrank/internal/student"
	"github.com/nadmax/medrank/internal/task"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankings_AdminOnly(t *testing.T) {
	f := setup(t)

	_, err := f.analytics.Rankings(context.Background(), student1)
	assertCode(t, apperr.EUNAUTHORIZED, err)

	_, err = f.analytics.Rankings(context.Background(), nobody)
	assertCode(t, apperr.EUNAUTHORIZED, err)
}

func TestRankings_EmptyStore(t *testing.T) {
	f := setup(t)

	rankings, err := f.analytics.Rankings(context.Background(), admin)
	require.NoError(t, err)
	assert.NotNil(t, rankings)
	assert.Empty(t, rankings)
}

func TestRankings_CacheGenerations(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.create(t, "s1")

	first, err := f.analytics.Rankings(ctx, admin)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Contains(t, f.cache.stored, f.cache.current(), "a miss stores the fresh rankings")

	planted := []ranking.StudentRanking{{StudentID: "cached", Rank: 1}}
	f.cache.stored[f.cache.current()] = planted

	hit, err := f.analytics.Rankings(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, planted, hit, "an unchanged generation is served from the cache")

	f.create(t, "s2")

	fresh, err := f.analytics.Rankings(ctx, admin)
	require.NoError(t, err)
	require.Len(t, fresh, 2, "a mutation invalidates the cached rankings")
}

// racingRepository lets a mutation commit right after the rankings reader has
// taken its task snapshot.
type racingRepository struct {
	*repository.MemoryTaskRepository
	afterList func()
}

func (r *racingRepository) List(ctx context.Context, f task.Filter) ([]*task.Task, error) {
	tasks, err := r.MemoryTaskRepository.List(ctx, f)
	if r.afterList != nil {
		hook := r.afterList
		r.afterList = nil
		hook()
	}
	return tasks, err
}

func TestRankings_MutationDuringComputationIsNotCachedAsCurrent(t *testing.T) {
	ctx := context.Background()
	repo := &racingRepository{MemoryTaskRepository: repository.NewMemoryTaskRepository()}
	directory := student.NewMemoryDirectory(testStudents)
	rankings := newCountingCache()
	clock := &fakeClock{now: time.Date(2026, 10, 12, 8, 0, 0, 0, time.UTC)}

	svc := NewTaskService(repo, directory, events.Nop{}, rankings, zerolog.Nop(), WithClock(clock.Now))
	reader := NewAnalyticsService(repo, directory, rankings, nil, zerolog.Nop(), WithClock(clock.Now))

	tk, err := svc.Create(ctx, admin, validInput("s1"))
	require.NoError(t, err)

	repo.afterList = func() {
		_, err := svc.Accept(ctx, student1, tk.ID)
		require.NoError(t, err)
	}

	during, err := reader.Rankings(ctx, admin)
	require.NoError(t, err)
	require.Len(t, during, 1)
	assert.Equal(t, 0.0, during[0].AcceptanceRate, "computed from the snapshot taken before the accept")

	after, err := reader.Rankings(ctx, admin)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, 100.0, after[0].AcceptanceRate, "the next read must reflect the committed accept")
}

func TestRankings_DirectoryChangeBypassesCache(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryTaskRepository()
	rankings := newCountingCache()
	clock := &fakeClock{now: time.Date(2026, 10, 12, 8, 0, 0, 0, time.UTC)}

	before := student.NewMemoryDirectory(testStudents)
	svc := NewTaskService(repo, before, events.Nop{}, rankings, zerolog.Nop(), WithClock(clock.Now))
	_, err := svc.Create(ctx, admin, validInput("s1"))
	require.NoError(t, err)

	first, err := NewAnalyticsService(repo, before, rankings, nil, zerolog.Nop()).Rankings(ctx, admin)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "Asha Rao", first[0].StudentName)

	renamed := append([]student.Student{{ID: "s1", Name: "Asha Rao-Mehta", Email: "asha@example.edu"}}, testStudents[1:]...)
	after := student.NewMemoryDirectory(renamed)

	second, err := NewAnalyticsService(repo, after, rankings, nil, zerolog.Nop()).Rankings(ctx, admin)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "Asha Rao-Mehta", second[0].StudentName)
}

func TestStudentReport_Access(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.create(t, "s1")

	_, err := f.analytics.StudentReport(ctx, student2, "s1")
	assertCode(t, apperr.EUNAUTHORIZED, err)

	_, err = f.analytics.StudentReport(ctx, nobody, "s1")
	assertCode(t, apperr.EUNAUTHORIZED, err)

	own, err := f.analytics.StudentReport(ctx, student1, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", own.Student.Name)

	byAdmin, err := f.analytics.StudentReport(ctx, admin, "s1")
	require.NoError(t, err)
	assert.Equal(t, own.Student, byAdmin.Student)
}

func TestStudentReport_Contents(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	done := f.create(t, "s1")
	_, err := f.svc.Accept(ctx, student1, done.ID)
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, student1, done.ID)
	require.NoError(t, err)
	_, err = f.svc.Score(ctx, admin, done.ID, 5)
	require.NoError(t, err)

	open := f.create(t, "s1")
	other := f.create(t, "s2")
	_, err = f.svc.Accept(ctx, student2, other.ID)
	require.NoError(t, err)

	report, err := f.analytics.StudentReport(ctx, student1, "s1")
	require.NoError(t, err)

	assert.Equal(t, 1, report.Student.Rank)
	assert.Equal(t, 2, report.Student.TotalStudents)
	assert.Equal(t, 50.0, report.Student.Percentile)
	assert.Equal(t, 5.0, report.Student.AverageScore)

	require.Len(t, report.PerformanceHistory, 1)
	assert.Equal(t, done.ID, report.PerformanceHistory[0].TaskID)

	require.Len(t, report.Upcoming, 1)
	assert.Equal(t, open.ID, report.Upcoming[0].ID)
	assert.Equal(t, analytics.PriorityHigh, report.Upcoming[0].Priority)

	require.Len(t, report.TaskTypes, 1)
	assert.Equal(t, "Cardiac", report.TaskTypes[0].Type)
}

func TestStudentReport_UnrankedStudent(t *testing.T) {
	f := setup(t)
	f.create(t, "s1")

	report, err := f.analytics.StudentReport(context.Background(), admin, "s3")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Student.Rank)
	assert.Equal(t, 2, report.Student.TotalStudents)
	assert.Equal(t, 0.0, report.Student.Percentile)
	assert.Empty(t, report.PerformanceHistory)
	assert.Empty(t, report.Upcoming)
}

func TestStudentReport_UnknownStudent(t *testing.T) {
	f := setup(t)

	_, err := f.analytics.StudentReport(context.Background(), admin, "ghost")
	assertCode(t, apperr.ENOTFOUND, err)
}

func TestAdminReport(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	t.Run("students are refused", func(t *testing.T) {
		_, err := f.analytics.AdminReport(ctx, student1, "month")
		assertCode(t, apperr.EUNAUTHORIZED, err)
	})

	t.Run("role is checked before the period", func(t *testing.T) {
		_, err := f.analytics.AdminReport(ctx, student1, "decade")
		assertCode(t, apperr.EUNAUTHORIZED, err)
	})

	t.Run("unknown period", func(t *testing.T) {
		_, err := f.analytics.AdminReport(ctx, admin, "decade")
		assertCode(t, apperr.EINVALID, err)
	})

	t.Run("defaults to month", func(t *testing.T) {
		a := f.create(t, "s1")
		_, err := f.svc.Accept(ctx, student1, a.ID)
		require.NoError(t, err)
		_, err = f.svc.Complete(ctx, student1, a.ID)
		require.NoError(t, err)
		_, err = f.svc.Score(ctx, admin, a.ID, 4)
		require.NoError(t, err)
		f.create(t, "s2")

		report, err := f.analytics.AdminReport(ctx, admin, "")
		require.NoError(t, err)

		assert.Equal(t, analytics.PeriodMonth, report.Period)
		assert.Equal(t, 3, report.TotalStudents)
		assert.Equal(t, 4.0, report.AverageScore)
		assert.Equal(t, 2, report.TasksInPeriod)
		assert.Equal(t, 50.0, report.CompletionRate)
		assert.Len(t, report.MonthlyTrends, 8)
		require.Len(t, report.TopPerformers, 2)
		assert.Equal(t, "s1", report.TopPerformers[0].StudentID)
		require.Len(t, report.TaskDistribution, 1)
		assert.Equal(t, "Cardiac", report.TaskDistribution[0].Type)
		assert.Equal(t, 100.0, report.TaskDistribution[0].Percent)
	})
}

func TestStudents(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.analytics.Students(ctx, student1)
	assertCode(t, apperr.EUNAUTHORIZED, err)

	students, err := f.analytics.Students(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, students, 3)
}

func TestRankings_ReflectTaskCounts(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	a := f.create(t, "s1")
	f.create(t, "s1")
	_, err := f.svc.Reject(ctx, student1, a.ID, "conflict of interest")
	require.NoError(t, err)

	rankings, err := f.analytics.Rankings(ctx, admin)
	require.NoError(t, err)
	require.Len(t, rankings, 1)
	assert.Equal(t, 2, rankings[0].TasksAssigned)
	assert.Equal(t, 0, rankings[0].TasksCompleted)
	assert.Equal(t, 0.0, rankings[0].AcceptanceRate)

	tasks, err := f.svc.List(ctx, student1, task.Filter{Status: task.StatusRejected})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "conflict of interest", tasks[0].RejectReason)
}
