package task

import (
	"math"
	"strings"
	"time"

	"github.com/nadmax/medrank/internal/apperr"
)

const (
	MinQualityScore = 1.0
	MaxQualityScore = 5.0
)

// Accept moves a pending task to accepted.
func (t *Task) Accept() error {
	if t.Status != StatusPending {
		return apperr.InvalidTransition("cannot accept task %s in status %s", t.ID, t.Status)
	}
	t.Status = StatusAccepted
	return nil
}

// Reject moves a pending task to rejected and keeps the reason for audit.
func (t *Task) Reject(reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return apperr.Validation("reject reason is required")
	}
	if t.Status != StatusPending {
		return apperr.InvalidTransition("cannot reject task %s in status %s", t.ID, t.Status)
	}
	t.Status = StatusRejected
	t.RejectReason = reason
	return nil
}

// Complete moves an accepted task to completed and stamps the completion time.
func (t *Task) Complete(now time.Time) error {
	if t.Status != StatusAccepted {
		return apperr.InvalidTransition("cannot complete task %s in status %s", t.ID, t.Status)
	}
	t.Status = StatusCompleted
	t.CompletedAt = &now
	return nil
}

// Score sets the quality score of a completed task. A score can be set once.
func (t *Task) Score(score float64) error {
	if err := ValidateScore(score); err != nil {
		return err
	}
	if t.Status != StatusCompleted {
		return apperr.InvalidTransition("cannot score task %s in status %s", t.ID, t.Status)
	}
	if t.IsScored() {
		return apperr.InvalidTransition("task %s is already scored", t.ID)
	}
	t.QualityScore = &score
	return nil
}

func ValidateScore(score float64) error {
	if math.IsNaN(score) || math.IsInf(score, 0) || score < MinQualityScore || score > MaxQualityScore {
		return apperr.Validation("quality score must be between %g and %g", MinQualityScore, MaxQualityScore)
	}
	return nil
}
