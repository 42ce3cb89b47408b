package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/nadmax/medrank/internal/apperr"
	"github.com/nadmax/medrank/internal/httputil"
	"github.com/nadmax/medrank/internal/service"
	"github.com/nadmax/medrank/internal/task"
)

type (
	RejectTaskRequest struct {
		RejectReason string `json:"reject_reason"`
	}
	ScoreTaskRequest struct {
		QualityScore *float64 `json:"quality_score"`
	}
)

// Handlers that decode a body gate on role first so a caller with the wrong
// role is refused before their input is looked at.

func (a *API) createTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	if !actor.IsAdmin() {
		a.writeError(w, r, apperr.Unauthorized("only admins can create tasks"))
		return
	}

	var in service.CreateTaskInput
	if err := decodeJSON(r, w, &in); err != nil {
		a.writeError(w, r, err)
		return
	}

	t, err := a.tasks.Create(r.Context(), actor, in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, t)
}

func (a *API) listTasks(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	f := task.Filter{
		StudentID: q.Get("student_id"),
		Status:    task.TaskStatus(q.Get("status")),
	}

	tasks, err := a.tasks.List(r.Context(), actor, f)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, tasks)
}

func (a *API) getTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	t, err := a.tasks.Get(r.Context(), actor, chi.URLParam(r, "taskID"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, t)
}

func (a *API) taskHistory(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	events, err := a.tasks.History(r.Context(), actor, chi.URLParam(r, "taskID"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, events)
}

func (a *API) acceptTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	t, err := a.tasks.Accept(r.Context(), actor, chi.URLParam(r, "taskID"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, t)
}

func (a *API) rejectTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	if !actor.IsStudent() {
		a.writeError(w, r, apperr.Unauthorized("only the assigned student can reject a task"))
		return
	}

	var req RejectTaskRequest
	if err := decodeJSON(r, w, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	t, err := a.tasks.Reject(r.Context(), actor, chi.URLParam(r, "taskID"), req.RejectReason)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, t)
}

func (a *API) completeTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	t, err := a.tasks.Complete(r.Context(), actor, chi.URLParam(r, "taskID"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, t)
}

func (a *API) scoreTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	if !actor.IsAdmin() {
		a.writeError(w, r, apperr.Unauthorized("only admins can score tasks"))
		return
	}

	var req ScoreTaskRequest
	if err := decodeJSON(r, w, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if req.QualityScore == nil {
		a.writeError(w, r, apperr.Validation("quality_score is required"))
		return
	}

	t, err := a.tasks.Score(r.Context(), actor, chi.URLParam(r, "taskID"), *req.QualityScore)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, t)
}
