// Package task defines the patient task domain model, its lifecycle state machine
// and the audit events emitted by every mutation.
package task

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

type (
	TaskStatus string
	Patient    struct {
		Name             string `json:"name"`
		Age              int    `json:"age"`
		PrimaryComplaint string `json:"primary_complaint"`
		Notes            string `json:"notes,omitempty"`
	}
	Task struct {
		ID                  string     `json:"id"`
		Title               string     `json:"title"`
		Description         string     `json:"description"`
		Patient             Patient    `json:"patient"`
		AssignedStudentID   string     `json:"assigned_student_id"`
		AssignedStudentName string     `json:"assigned_student_name,omitempty"`
		Status              TaskStatus `json:"status"`
		RejectReason        string     `json:"reject_reason,omitempty"`
		QualityScore        *float64   `json:"quality_score,omitempty"`
		CreatedAt           time.Time  `json:"created_at"`
		CompletedAt         *time.Time `json:"completed_at,omitempty"`
	}
)

const (
	StatusPending   TaskStatus = "pending"
	StatusAccepted  TaskStatus = "accepted"
	StatusRejected  TaskStatus = "rejected"
	StatusCompleted TaskStatus = "completed"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected, StatusCompleted:
		return true
	}
	return false
}

func NewTask(title, description string, patient Patient, studentID, studentName string, now time.Time) *Task {
	return &Task{
		ID:                  uuid.New().String(),
		Title:               title,
		Description:         description,
		Patient:             patient,
		AssignedStudentID:   studentID,
		AssignedStudentName: studentName,
		Status:              StatusPending,
		CreatedAt:           now,
	}
}

func (t *Task) Clone() *Task {
	c := *t
	if t.QualityScore != nil {
		score := *t.QualityScore
		c.QualityScore = &score
	}
	if t.CompletedAt != nil {
		completedAt := *t.CompletedAt
		c.CompletedAt = &completedAt
	}
	return &c
}

func (t *Task) IsScored() bool {
	return t.QualityScore != nil
}

// Filter restricts a task listing. Zero fields match everything.
type Filter struct {
	StudentID string
	Status    TaskStatus
}

func (f Filter) Match(t *Task) bool {
	if f.StudentID != "" && t.AssignedStudentID != f.StudentID {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	return true
}

// Sort orders tasks by creation time, oldest first, with the ID as tie-break.
func Sort(tasks []*Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		}
		return tasks[i].ID < tasks[j].ID
	})
}
