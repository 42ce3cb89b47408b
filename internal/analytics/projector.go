// Package analytics projects per-student and cohort reports out of a task
// snapshot. Every report is a pure function of its inputs.
package analytics

import (
	"sort"
	"strings"
	"time"

	"github.com/nadmax/medrank/internal/ranking"
	"github.com/nadmax/medrank/internal/student"
	"github.com/nadmax/medrank/internal/task"
)

const OtherTaskType = "Other"

type Options struct {
	Classify           Classifier
	DueAfter           time.Duration
	StudentPerformance int
	TopPerformers      int
	TrendMonths        int
}

func DefaultOptions() Options {
	return Options{
		Classify:           DefaultPriorityRules().Classifier(),
		DueAfter:           7 * 24 * time.Hour,
		StudentPerformance: 8,
		TopPerformers:      5,
		TrendMonths:        8,
	}
}

type Projector struct {
	opts Options
}

// NewProjector fills zero options with their defaults.
func NewProjector(opts Options) *Projector {
	def := DefaultOptions()
	if opts.Classify == nil {
		opts.Classify = def.Classify
	}
	if opts.DueAfter <= 0 {
		opts.DueAfter = def.DueAfter
	}
	if opts.StudentPerformance <= 0 {
		opts.StudentPerformance = def.StudentPerformance
	}
	if opts.TopPerformers <= 0 {
		opts.TopPerformers = def.TopPerformers
	}
	if opts.TrendMonths <= 0 {
		opts.TrendMonths = def.TrendMonths
	}
	return &Projector{opts: opts}
}

type (
	StudentInfo struct {
		ID             string  `json:"id"`
		Name           string  `json:"name"`
		Email          string  `json:"email,omitempty"`
		Rank           int     `json:"rank"`
		TotalStudents  int     `json:"total_students"`
		Percentile     float64 `json:"percentile"`
		AverageScore   float64 `json:"average_score"`
		TasksCompleted int     `json:"tasks_completed"`
		AcceptanceRate float64 `json:"acceptance_rate"`
	}
	PerformancePoint struct {
		TaskID      string    `json:"task_id"`
		Title       string    `json:"title"`
		CompletedAt time.Time `json:"completed_at"`
		Score       float64   `json:"score"`
	}
	WeeklyProgress struct {
		Week         string    `json:"week"`
		WeekStart    time.Time `json:"week_start"`
		Tasks        int       `json:"tasks"`
		AverageScore float64   `json:"average_score"`
		Improvement  float64   `json:"improvement"`
	}
	TaskTypePerformance struct {
		Type         string  `json:"type"`
		Completed    int     `json:"completed"`
		AverageScore float64 `json:"average_score"`
	}
	UpcomingTask struct {
		ID          string          `json:"id"`
		Title       string          `json:"title"`
		PatientName string          `json:"patient_name"`
		Status      task.TaskStatus `json:"status"`
		CreatedAt   time.Time       `json:"created_at"`
		Due         time.Time       `json:"due"`
		Priority    Priority        `json:"priority"`
	}
	StudentReport struct {
		Student            StudentInfo           `json:"student"`
		PerformanceHistory []PerformancePoint    `json:"performance_history"`
		WeeklyProgress     []WeeklyProgress      `json:"weekly_progress"`
		TaskTypes          []TaskTypePerformance `json:"task_types"`
		Upcoming           []UpcomingTask        `json:"upcoming"`
		GeneratedAt        time.Time             `json:"generated_at"`
	}
)

// StudentReport builds the report for s. tasks is the full snapshot and
// rankings must have been computed from it. A student without tasks is placed
// after every ranked student.
func (p *Projector) StudentReport(tasks []*task.Task, rankings []ranking.StudentRanking, s student.Student, now time.Time) StudentReport {
	mine := make([]*task.Task, 0)
	for _, t := range tasks {
		if t.AssignedStudentID == s.ID {
			mine = append(mine, t)
		}
	}

	info := StudentInfo{ID: s.ID, Name: s.Name, Email: s.Email}
	if r, ok := ranking.Find(rankings, s.ID); ok {
		info.Rank = r.Rank
		info.TotalStudents = len(rankings)
		info.AverageScore = r.AverageScore
		info.TasksCompleted = r.TasksCompleted
		info.AcceptanceRate = r.AcceptanceRate
		if info.Name == "" {
			info.Name = r.StudentName
		}
	} else {
		info.Rank = len(rankings) + 1
		info.TotalStudents = len(rankings) + 1
	}
	if info.Name == "" {
		info.Name = s.ID
	}
	info.Percentile = 100 * float64(info.TotalStudents-info.Rank) / float64(info.TotalStudents)

	return StudentReport{
		Student:            info,
		PerformanceHistory: performanceHistory(mine),
		WeeklyProgress:     weeklyProgress(mine),
		TaskTypes:          taskTypePerformance(mine),
		Upcoming:           p.upcoming(mine),
		GeneratedAt:        now,
	}
}

func performanceHistory(tasks []*task.Task) []PerformancePoint {
	points := []PerformancePoint{}
	for _, t := range tasks {
		if t.Status != task.StatusCompleted || t.QualityScore == nil || t.CompletedAt == nil {
			continue
		}
		points = append(points, PerformancePoint{
			TaskID:      t.ID,
			Title:       t.Title,
			CompletedAt: *t.CompletedAt,
			Score:       *t.QualityScore,
		})
	}

	sort.SliceStable(points, func(i, j int) bool {
		if !points[i].CompletedAt.Equal(points[j].CompletedAt) {
			return points[i].CompletedAt.Before(points[j].CompletedAt)
		}
		return points[i].TaskID < points[j].TaskID
	})
	return points
}

func weeklyProgress(tasks []*task.Task) []WeeklyProgress {
	type bucket struct {
		start  time.Time
		tasks  int
		sum    float64
		scored int
	}

	buckets := make(map[string]*bucket)
	for _, t := range tasks {
		if t.Status != task.StatusCompleted || t.CompletedAt == nil {
			continue
		}
		label := isoWeekLabel(*t.CompletedAt)
		b, ok := buckets[label]
		if !ok {
			b = &bucket{start: weekStart(*t.CompletedAt)}
			buckets[label] = b
		}
		b.tasks++
		if t.QualityScore != nil {
			b.sum += *t.QualityScore
			b.scored++
		}
	}

	weeks := make([]WeeklyProgress, 0, len(buckets))
	for label, b := range buckets {
		weeks = append(weeks, WeeklyProgress{
			Week:         label,
			WeekStart:    b.start,
			Tasks:        b.tasks,
			AverageScore: mean(b.sum, b.scored),
		})
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].WeekStart.Before(weeks[j].WeekStart) })

	for i := 1; i < len(weeks); i++ {
		weeks[i].Improvement = weeks[i].AverageScore - weeks[i-1].AverageScore
	}
	return weeks
}

func taskTypePerformance(tasks []*task.Task) []TaskTypePerformance {
	type acc struct {
		completed int
		sum       float64
		scored    int
	}

	types := make(map[string]*acc)
	for _, t := range tasks {
		if t.Status != task.StatusCompleted {
			continue
		}
		name := TaskType(t.Title)
		a, ok := types[name]
		if !ok {
			a = &acc{}
			types[name] = a
		}
		a.completed++
		if t.QualityScore != nil {
			a.sum += *t.QualityScore
			a.scored++
		}
	}

	out := make([]TaskTypePerformance, 0, len(types))
	for name, a := range types {
		out = append(out, TaskTypePerformance{
			Type:         name,
			Completed:    a.completed,
			AverageScore: mean(a.sum, a.scored),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Completed != out[j].Completed {
			return out[i].Completed > out[j].Completed
		}
		return out[i].Type < out[j].Type
	})
	return out
}

func (p *Projector) upcoming(tasks []*task.Task) []UpcomingTask {
	open := make([]*task.Task, 0)
	for _, t := range tasks {
		if t.Status == task.StatusPending || t.Status == task.StatusAccepted {
			open = append(open, t)
		}
	}
	task.Sort(open)

	out := make([]UpcomingTask, 0, len(open))
	for _, t := range open {
		out = append(out, UpcomingTask{
			ID:          t.ID,
			Title:       t.Title,
			PatientName: t.Patient.Name,
			Status:      t.Status,
			CreatedAt:   t.CreatedAt,
			Due:         t.CreatedAt.Add(p.opts.DueAfter),
			Priority:    p.opts.Classify(t.Patient.Age, t.Patient.PrimaryComplaint),
		})
	}
	return out
}

type (
	MonthlyTrend struct {
		Month          string  `json:"month"`
		Label          string  `json:"label"`
		Tasks          int     `json:"tasks"`
		AverageScore   float64 `json:"average_score"`
		CompletionRate float64 `json:"completion_rate"`
	}
	TaskTypeShare struct {
		Type    string  `json:"type"`
		Count   int     `json:"count"`
		Percent float64 `json:"percent"`
	}
	AdminReport struct {
		Period             Period                   `json:"period"`
		PeriodStart        time.Time                `json:"period_start"`
		TotalStudents      int                      `json:"total_students"`
		AverageScore       float64                  `json:"average_score"`
		TasksInPeriod      int                      `json:"tasks_in_period"`
		CompletionRate     float64                  `json:"completion_rate"`
		StudentPerformance []ranking.StudentRanking `json:"student_performance"`
		MonthlyTrends      []MonthlyTrend           `json:"monthly_trends"`
		TaskDistribution   []TaskTypeShare          `json:"task_distribution"`
		TopPerformers      []ranking.StudentRanking `json:"top_performers"`
		GeneratedAt        time.Time                `json:"generated_at"`
	}
)

// AdminReport builds the cohort report. totalStudents is the size of the
// student directory; period only scopes the task count and completion rate.
func (p *Projector) AdminReport(tasks []*task.Task, rankings []ranking.StudentRanking, totalStudents int, period Period, now time.Time) AdminReport {
	start := period.Start(now)

	var (
		sum                float64
		scored             int
		inPeriod, complete int
	)
	for _, t := range tasks {
		if t.QualityScore != nil {
			sum += *t.QualityScore
			scored++
		}
		if !t.CreatedAt.Before(start) && !t.CreatedAt.After(now) {
			inPeriod++
			if t.Status == task.StatusCompleted {
				complete++
			}
		}
	}

	return AdminReport{
		Period:             period,
		PeriodStart:        start,
		TotalStudents:      totalStudents,
		AverageScore:       mean(sum, scored),
		TasksInPeriod:      inPeriod,
		CompletionRate:     rate(complete, inPeriod),
		StudentPerformance: ranking.Top(rankings, p.opts.StudentPerformance),
		MonthlyTrends:      p.monthlyTrends(tasks, now),
		TaskDistribution:   taskDistribution(tasks),
		TopPerformers:      ranking.Top(rankings, p.opts.TopPerformers),
		GeneratedAt:        now,
	}
}

func (p *Projector) monthlyTrends(tasks []*task.Task, now time.Time) []MonthlyTrend {
	current := monthStart(now)
	trends := make([]MonthlyTrend, 0, p.opts.TrendMonths)

	for i := p.opts.TrendMonths - 1; i >= 0; i-- {
		from := current.AddDate(0, -i, 0)
		to := from.AddDate(0, 1, 0)

		var (
			count, completed, scored int
			sum                      float64
		)
		for _, t := range tasks {
			if t.CreatedAt.Before(from) || !t.CreatedAt.Before(to) {
				continue
			}
			count++
			if t.Status == task.StatusCompleted {
				completed++
				if t.QualityScore != nil {
					sum += *t.QualityScore
					scored++
				}
			}
		}

		trends = append(trends, MonthlyTrend{
			Month:          from.Format("2006-01"),
			Label:          from.Format("Jan"),
			Tasks:          count,
			AverageScore:   mean(sum, scored),
			CompletionRate: rate(completed, count),
		})
	}
	return trends
}

func taskDistribution(tasks []*task.Task) []TaskTypeShare {
	counts := make(map[string]int)
	for _, t := range tasks {
		counts[TaskType(t.Title)]++
	}

	shares := make([]TaskTypeShare, 0, len(counts))
	for name, n := range counts {
		shares = append(shares, TaskTypeShare{
			Type:    name,
			Count:   n,
			Percent: rate(n, len(tasks)),
		})
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Count != shares[j].Count {
			return shares[i].Count > shares[j].Count
		}
		return shares[i].Type < shares[j].Type
	})
	return shares
}

// TaskType buckets a task by the first word of its title.
func TaskType(title string) string {
	fields := strings.Fields(title)
	if len(fields) == 0 {
		return OtherTaskType
	}
	return fields[0]
}

func mean(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func rate(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(part) / float64(total)
}
