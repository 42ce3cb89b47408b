package task

import (
	"math"
	"testing"
	"time"

	"github.com/nadmax/medrank/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func taskInStatus(t *testing.T, status TaskStatus, scored bool) *Task {
	t.Helper()

	now := time.Now()
	tsk := newTestTask(now)
	switch status {
	case StatusAccepted:
		require.NoError(t, tsk.Accept())
	case StatusRejected:
		require.NoError(t, tsk.Reject("unavailable"))
	case StatusCompleted:
		require.NoError(t, tsk.Accept())
		require.NoError(t, tsk.Complete(now))
		if scored {
			require.NoError(t, tsk.Score(3))
		}
	}
	return tsk
}

func TestTransitions(t *testing.T) {
	type step func(*Task) error

	accept := func(t *Task) error { return t.Accept() }
	reject := func(t *Task) error { return t.Reject("busy") }
	complete := func(t *Task) error { return t.Complete(time.Now()) }
	score := func(t *Task) error { return t.Score(4) }

	tests := []struct {
		name   string
		from   TaskStatus
		scored bool
		step   step
		want   TaskStatus
		code   string
	}{
		{name: "accept pending", from: StatusPending, step: accept, want: StatusAccepted},
		{name: "reject pending", from: StatusPending, step: reject, want: StatusRejected},
		{name: "complete accepted", from: StatusAccepted, step: complete, want: StatusCompleted},
		{name: "score completed", from: StatusCompleted, step: score, want: StatusCompleted},

		{name: "complete pending", from: StatusPending, step: complete, code: apperr.ETRANSITION},
		{name: "score pending", from: StatusPending, step: score, code: apperr.ETRANSITION},
		{name: "accept accepted", from: StatusAccepted, step: accept, code: apperr.ETRANSITION},
		{name: "reject accepted", from: StatusAccepted, step: reject, code: apperr.ETRANSITION},
		{name: "score accepted", from: StatusAccepted, step: score, code: apperr.ETRANSITION},
		{name: "accept rejected", from: StatusRejected, step: accept, code: apperr.ETRANSITION},
		{name: "reject rejected", from: StatusRejected, step: reject, code: apperr.ETRANSITION},
		{name: "complete rejected", from: StatusRejected, step: complete, code: apperr.ETRANSITION},
		{name: "score rejected", from: StatusRejected, step: score, code: apperr.ETRANSITION},
		{name: "accept completed", from: StatusCompleted, step: accept, code: apperr.ETRANSITION},
		{name: "reject completed", from: StatusCompleted, step: reject, code: apperr.ETRANSITION},
		{name: "complete completed", from: StatusCompleted, step: complete, code: apperr.ETRANSITION},
		{name: "rescore completed", from: StatusCompleted, scored: true, step: score, code: apperr.ETRANSITION},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tsk := taskInStatus(t, tt.from, tt.scored)
			before := tsk.Clone()

			err := tt.step(tsk)
			if tt.code != "" {
				require.Error(t, err)
				assert.Equal(t, tt.code, apperr.ErrorCode(err))
				assert.Equal(t, before, tsk, "failed transition must not mutate the task")
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, tsk.Status)
		})
	}
}

func TestComplete_SetsCompletedAt(t *testing.T) {
	tsk := taskInStatus(t, StatusAccepted, false)
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, tsk.Complete(now))
	require.NotNil(t, tsk.CompletedAt)
	assert.Equal(t, now, *tsk.CompletedAt)
}

func TestReject_RequiresReason(t *testing.T) {
	tsk := taskInStatus(t, StatusPending, false)

	err := tsk.Reject("   ")
	assert.Equal(t, apperr.EINVALID, apperr.ErrorCode(err))
	assert.Equal(t, StatusPending, tsk.Status)

	require.NoError(t, tsk.Reject("  out of scope "))
	assert.Equal(t, "out of scope", tsk.RejectReason)
}

func TestScore_Range(t *testing.T) {
	tests := []struct {
		score float64
		ok    bool
	}{
		{score: 1, ok: true},
		{score: 2.5, ok: true},
		{score: 5, ok: true},
		{score: 0.99, ok: false},
		{score: 5.01, ok: false},
		{score: 0, ok: false},
		{score: -3, ok: false},
		{score: math.NaN(), ok: false},
		{score: math.Inf(1), ok: false},
	}

	for _, tt := range tests {
		tsk := taskInStatus(t, StatusCompleted, false)
		err := tsk.Score(tt.score)
		if tt.ok {
			require.NoError(t, err, "score %v", tt.score)
			assert.Equal(t, tt.score, *tsk.QualityScore)
			continue
		}
		assert.Equal(t, apperr.EINVALID, apperr.ErrorCode(err), "score %v", tt.score)
		assert.Nil(t, tsk.QualityScore)
	}
}

func TestScore_OutOfRangeOnPendingIsValidationError(t *testing.T) {
	tsk := taskInStatus(t, StatusPending, false)

	err := tsk.Score(9)
	assert.Equal(t, apperr.EINVALID, apperr.ErrorCode(err))
}
