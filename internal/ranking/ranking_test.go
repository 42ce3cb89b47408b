package ranking

import (
	"fmt"
	"testing"
	"time"

	"github.com/nadmax/medrank/internal/student"
	"github.com/nadmax/medrank/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 10, 5, 9, 0, 0, 0, time.UTC)

func newTask(id, studentID string, status task.TaskStatus, score *float64) *task.Task {
	t := &task.Task{
		ID:                id,
		Title:             "Ward round " + id,
		AssignedStudentID: studentID,
		Status:            status,
		CreatedAt:         base,
		QualityScore:      score,
	}
	if status == task.StatusCompleted {
		completedAt := base.Add(time.Hour)
		t.CompletedAt = &completedAt
	}
	return t
}

func score(v float64) *float64 {
	return &v
}

var directory = []student.Student{
	{ID: "s1", Name: "Asha Rao", Email: "asha@example.edu"},
	{ID: "s2", Name: "Ben Cole", Email: "ben@example.edu"},
	{ID: "s3", Name: "Chen Li", Email: "chen@example.edu"},
}

func TestCompute_AverageOrdering(t *testing.T) {
	tasks := []*task.Task{
		newTask("t1", "s1", task.StatusCompleted, score(4)),
		newTask("t2", "s1", task.StatusCompleted, score(5)),
		newTask("t3", "s2", task.StatusCompleted, score(3)),
	}

	rankings := Compute(tasks, directory)
	require.Len(t, rankings, 2)

	assert.Equal(t, "s1", rankings[0].StudentID)
	assert.Equal(t, 1, rankings[0].Rank)
	assert.Equal(t, 4.5, rankings[0].AverageScore)
	assert.Equal(t, 2, rankings[0].TasksCompleted)

	assert.Equal(t, "s2", rankings[1].StudentID)
	assert.Equal(t, 2, rankings[1].Rank)
	assert.Equal(t, 3.0, rankings[1].AverageScore)
}

func TestCompute_AcceptanceRate(t *testing.T) {
	tasks := []*task.Task{
		newTask("t1", "s1", task.StatusPending, nil),
		newTask("t2", "s1", task.StatusAccepted, nil),
		newTask("t3", "s1", task.StatusCompleted, nil),
		newTask("t4", "s1", task.StatusRejected, nil),
	}

	rankings := Compute(tasks, directory)
	require.Len(t, rankings, 1)
	assert.Equal(t, 50.0, rankings[0].AcceptanceRate)
	assert.Equal(t, 4, rankings[0].TasksAssigned)
	assert.Equal(t, 1, rankings[0].TasksCompleted)
	assert.Equal(t, 0.0, rankings[0].AverageScore, "no scored tasks averages to zero")
}

func TestCompute_TieBreaks(t *testing.T) {
	tests := []struct {
		name     string
		tasks    []*task.Task
		expected []string
	}{
		{
			name: "more completed tasks wins on equal average",
			tasks: []*task.Task{
				newTask("t1", "s1", task.StatusCompleted, score(4)),
				newTask("t2", "s2", task.StatusCompleted, score(4)),
				newTask("t3", "s2", task.StatusCompleted, nil),
			},
			expected: []string{"s2", "s1"},
		},
		{
			name: "name ascending on equal average and count",
			tasks: []*task.Task{
				newTask("t1", "s3", task.StatusCompleted, score(3)),
				newTask("t2", "s2", task.StatusCompleted, score(3)),
				newTask("t3", "s1", task.StatusCompleted, score(3)),
			},
			expected: []string{"s1", "s2", "s3"},
		},
		{
			name: "id ascending when names collide",
			tasks: []*task.Task{
				newTask("t1", "x2", task.StatusPending, nil),
				newTask("t2", "x1", task.StatusPending, nil),
			},
			expected: []string{"x1", "x2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			students := append([]student.Student{}, directory...)
			students = append(students,
				student.Student{ID: "x1", Name: "Same Name"},
				student.Student{ID: "x2", Name: "Same Name"},
			)

			rankings := Compute(tt.tasks, students)
			ids := make([]string, len(rankings))
			for i, r := range rankings {
				ids[i] = r.StudentID
			}
			assert.Equal(t, tt.expected, ids)
		})
	}
}

func TestCompute_DisplayNameFallback(t *testing.T) {
	stored := newTask("t1", "ghost", task.StatusPending, nil)
	stored.AssignedStudentName = "Former Student"
	anonymous := newTask("t2", "unknown-id", task.StatusPending, nil)
	known := newTask("t3", "s1", task.StatusPending, nil)
	known.AssignedStudentName = "Old Name"

	rankings := Compute([]*task.Task{stored, anonymous, known}, directory)

	r, ok := Find(rankings, "ghost")
	require.True(t, ok)
	assert.Equal(t, "Former Student", r.StudentName)

	r, ok = Find(rankings, "unknown-id")
	require.True(t, ok)
	assert.Equal(t, "unknown-id", r.StudentName)

	r, ok = Find(rankings, "s1")
	require.True(t, ok)
	assert.Equal(t, "Asha Rao", r.StudentName)
}

func TestCompute_StudentsWithoutTasksAreOmitted(t *testing.T) {
	rankings := Compute([]*task.Task{newTask("t1", "s1", task.StatusPending, nil)}, directory)
	require.Len(t, rankings, 1)

	_, ok := Find(rankings, "s2")
	assert.False(t, ok)
}

func TestCompute_Empty(t *testing.T) {
	rankings := Compute(nil, directory)
	assert.NotNil(t, rankings)
	assert.Empty(t, rankings)
}

func TestCompute_Properties(t *testing.T) {
	statuses := []task.TaskStatus{task.StatusPending, task.StatusAccepted, task.StatusRejected, task.StatusCompleted}

	var tasks []*task.Task
	for i := 0; i < 60; i++ {
		studentID := fmt.Sprintf("p%02d", i%13)
		status := statuses[(i*7)%len(statuses)]
		var s *float64
		if status == task.StatusCompleted && i%3 != 0 {
			s = score(float64(1 + i%5))
		}
		tasks = append(tasks, newTask(fmt.Sprintf("t%02d", i), studentID, status, s))
	}

	first := Compute(tasks, nil)
	second := Compute(tasks, nil)
	assert.Equal(t, first, second, "recomputation must be idempotent")

	require.Len(t, first, 13)
	seen := make(map[int]bool)
	for _, r := range first {
		assert.False(t, seen[r.Rank], "rank %d assigned twice", r.Rank)
		seen[r.Rank] = true
		assert.GreaterOrEqual(t, r.Rank, 1)
		assert.LessOrEqual(t, r.Rank, len(first))

		assert.GreaterOrEqual(t, r.AcceptanceRate, 0.0)
		assert.LessOrEqual(t, r.AcceptanceRate, 100.0)
		assert.GreaterOrEqual(t, r.AverageScore, 0.0)
		assert.LessOrEqual(t, r.AverageScore, 5.0)
	}
}

func TestTop(t *testing.T) {
	rankings := []StudentRanking{{StudentID: "a"}, {StudentID: "b"}, {StudentID: "c"}}

	assert.Len(t, Top(rankings, 2), 2)
	assert.Len(t, Top(rankings, 10), 3)
	assert.Len(t, Top(rankings, -1), 3)
	assert.Empty(t, Top(rankings, 0))
}
