package task

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Action string

const (
	ActionCreated   Action = "task_created"
	ActionAccepted  Action = "task_accepted"
	ActionRejected  Action = "task_rejected"
	ActionCompleted Action = "task_completed"
	ActionScored    Action = "task_scored"
)

// Event is the audit record written together with every task mutation.
type Event struct {
	ID         string    `json:"id"`
	TaskID     string    `json:"task_id"`
	TaskTitle  string    `json:"task_title"`
	StudentID  string    `json:"student_id"`
	ActorID    string    `json:"actor_id"`
	Role       string    `json:"role"`
	Action     Action    `json:"action"`
	Reason     string    `json:"reason,omitempty"`
	Score      *float64  `json:"score,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewEvent(t *Task, actorID, role string, action Action, now time.Time) *Event {
	ev := &Event{
		ID:         uuid.New().String(),
		TaskID:     t.ID,
		TaskTitle:  t.Title,
		StudentID:  t.AssignedStudentID,
		ActorID:    actorID,
		Role:       role,
		Action:     action,
		OccurredAt: now,
	}

	switch action {
	case ActionRejected:
		ev.Reason = t.RejectReason
	case ActionScored:
		if t.QualityScore != nil {
			score := *t.QualityScore
			ev.Score = &score
		}
	}

	return ev
}

func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func EventFromJSON(data []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}

	return &ev, nil
}
