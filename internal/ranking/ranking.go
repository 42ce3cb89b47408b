// Package ranking derives per-student performance figures from a task snapshot
// and orders students by them.
package ranking

import (
	"sort"

	"github.com/nadmax/medrank/internal/student"
	"github.com/nadmax/medrank/internal/task"
)

type StudentRanking struct {
	StudentID      string  `json:"student_id"`
	StudentName    string  `json:"student_name"`
	Rank           int     `json:"rank"`
	TasksAssigned  int     `json:"tasks_assigned"`
	TasksCompleted int     `json:"tasks_completed"`
	AverageScore   float64 `json:"average_score"`
	AcceptanceRate float64 `json:"acceptance_rate"`
}

type tally struct {
	id          string
	storedName  string
	assigned    int
	accepted    int
	completed   int
	scoreSum    float64
	scoredCount int
}

// Compute returns one ranking per student that has at least one task.
//
// Students are ordered by average score, then completed task count (both
// descending), then display name and ID (ascending). Ranks are 1..N with no
// ties. Display names come from the directory, falling back to the name
// stored on the task and finally to the student ID.
func Compute(tasks []*task.Task, students []student.Student) []StudentRanking {
	names := make(map[string]string, len(students))
	for _, s := range students {
		names[s.ID] = s.Name
	}

	tallies := make(map[string]*tally)
	order := []string{}
	for _, t := range tasks {
		tl, ok := tallies[t.AssignedStudentID]
		if !ok {
			tl = &tally{id: t.AssignedStudentID}
			tallies[t.AssignedStudentID] = tl
			order = append(order, t.AssignedStudentID)
		}
		if tl.storedName == "" {
			tl.storedName = t.AssignedStudentName
		}

		tl.assigned++
		switch t.Status {
		case task.StatusAccepted:
			tl.accepted++
		case task.StatusCompleted:
			tl.accepted++
			tl.completed++
		}
		if t.QualityScore != nil {
			tl.scoreSum += *t.QualityScore
			tl.scoredCount++
		}
	}

	rankings := make([]StudentRanking, 0, len(tallies))
	for _, id := range order {
		tl := tallies[id]
		rankings = append(rankings, StudentRanking{
			StudentID:      id,
			StudentName:    displayName(id, names[id], tl.storedName),
			TasksAssigned:  tl.assigned,
			TasksCompleted: tl.completed,
			AverageScore:   average(tl.scoreSum, tl.scoredCount),
			AcceptanceRate: percent(tl.accepted, tl.assigned),
		})
	}

	sort.Slice(rankings, func(i, j int) bool {
		a, b := rankings[i], rankings[j]
		if a.AverageScore != b.AverageScore {
			return a.AverageScore > b.AverageScore
		}
		if a.TasksCompleted != b.TasksCompleted {
			return a.TasksCompleted > b.TasksCompleted
		}
		if a.StudentName != b.StudentName {
			return a.StudentName < b.StudentName
		}
		return a.StudentID < b.StudentID
	})

	for i := range rankings {
		rankings[i].Rank = i + 1
	}

	return rankings
}

// Find returns the ranking entry for studentID, if present.
func Find(rankings []StudentRanking, studentID string) (StudentRanking, bool) {
	for _, r := range rankings {
		if r.StudentID == studentID {
			return r, true
		}
	}
	return StudentRanking{}, false
}

// Top returns at most n leading entries.
func Top(rankings []StudentRanking, n int) []StudentRanking {
	if n < 0 || n >= len(rankings) {
		return rankings
	}
	return rankings[:n]
}

func displayName(id, directoryName, storedName string) string {
	switch {
	case directoryName != "":
		return directoryName
	case storedName != "":
		return storedName
	default:
		return id
	}
}

func average(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(part) / float64(total)
}
