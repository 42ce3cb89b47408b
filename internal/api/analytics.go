package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/nadmax/medrank/internal/httputil"
	"github.com/nadmax/medrank/internal/report"
)

var exportContentTypes = map[string]string{
	report.FormatCSV:  "text/csv; charset=utf-8",
	report.FormatJSON: "application/json",
}

func (a *API) listStudents(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	students, err := a.analytics.Students(r.Context(), actor)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, students)
}

func (a *API) rankings(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	rankings, err := a.analytics.Rankings(r.Context(), actor)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, rankings)
}

// exportRankings renders the rankings into a buffer first so a rendering
// failure can still be reported with a proper status.
func (a *API) exportRankings(format string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}

		rankings, err := a.analytics.Rankings(r.Context(), actor)
		if err != nil {
			a.writeError(w, r, err)
			return
		}

		now := a.now()
		var buf bytes.Buffer
		if err := report.Write(&buf, format, rankings, now); err != nil {
			a.writeError(w, r, fmt.Errorf("failed to render rankings: %w", err))
			return
		}

		w.Header().Set("Content-Type", exportContentTypes[format])
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename(format, now)))
		w.WriteHeader(http.StatusOK)
		if _, err := buf.WriteTo(w); err != nil {
			a.requestLogger(r).Warn().Err(err).Msg("Failed to write rankings export")
		}
	}
}

func (a *API) adminReport(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	rep, err := a.analytics.AdminReport(r.Context(), actor, r.URL.Query().Get("period"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, rep)
}

func (a *API) studentReport(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	rep, err := a.analytics.StudentReport(r.Context(), actor, chi.URLParam(r, "studentID"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, rep)
}

func (a *API) myReport(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	rep, err := a.analytics.StudentReport(r.Context(), actor, actor.ID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, rep)
}
