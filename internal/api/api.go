// Package api exposes the task engine over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/nadmax/medrank/internal/apperr"
	"github.com/nadmax/medrank/internal/auth"
	"github.com/nadmax/medrank/internal/httputil"
	"github.com/nadmax/medrank/internal/middleware"
	"github.com/nadmax/medrank/internal/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

type API struct {
	tasks     service.TaskService
	analytics service.AnalyticsService
	issuer    *auth.Issuer
	logger    zerolog.Logger
	router    chi.Router
	extra     []func(http.Handler) http.Handler
	now       func() time.Time
}

type Option func(*API)

// WithMiddleware appends middleware after the built-in request ID, logging,
// recovery and metrics layers.
func WithMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(a *API) { a.extra = append(a.extra, mw...) }
}

func WithClock(now func() time.Time) Option {
	return func(a *API) { a.now = now }
}

func NewAPI(
	tasks service.TaskService,
	analytics service.AnalyticsService,
	issuer *auth.Issuer,
	logger zerolog.Logger,
	opts ...Option,
) *API {
	a := &API{
		tasks:     tasks,
		analytics: analytics,
		issuer:    issuer,
		logger:    logger,
		router:    chi.NewRouter(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(a)
	}

	a.setupRoutes()
	return a
}

func (a *API) setupRoutes() {
	r := a.router

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(a.logger))
	r.Use(middleware.Recovery(a.logger))
	r.Use(middleware.MetricsMiddleware)
	r.Use(a.extra...)

	r.Get("/health", a.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(a.issuer))

		r.Route("/tasks", func(r chi.Router) {
			r.Post("/", a.createTask)
			r.Get("/", a.listTasks)
			r.Route("/{taskID}", func(r chi.Router) {
				r.Get("/", a.getTask)
				r.Get("/history", a.taskHistory)
				r.Post("/accept", a.acceptTask)
				r.Post("/reject", a.rejectTask)
				r.Post("/complete", a.completeTask)
				r.Post("/score", a.scoreTask)
			})
		})

		r.Get("/students", a.listStudents)

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/rankings", a.rankings)
			r.Get("/rankings.csv", a.exportRankings("csv"))
			r.Get("/rankings.json", a.exportRankings("json"))
			r.Get("/admin", a.adminReport)
			r.Get("/students/{studentID}", a.studentReport)
			r.Get("/me", a.myReport)
		})
	})
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   a.now().Format(time.RFC3339),
	})
}

// writeError maps err onto its HTTP status. Internal errors are logged with
// the request scoped logger since their message never reaches the client.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if apperr.ErrorCode(err) == apperr.EINTERNAL {
		a.requestLogger(r).Error().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("Request failed")
	}
	httputil.WriteError(w, err)
}

func (a *API) requestLogger(r *http.Request) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &a.logger
}

func actorFrom(w http.ResponseWriter, r *http.Request) (auth.Actor, bool) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		httputil.WriteJSONError(w, "missing bearer token", http.StatusUnauthorized)
	}
	return actor, ok
}

func decodeJSON(r *http.Request, w http.ResponseWriter, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperr.Validation("request body exceeds %d bytes", maxErr.Limit)
		}
		return apperr.Validation("invalid JSON body: %s", describeJSONError(err))
	}
	return nil
}

func describeJSONError(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return fmt.Sprintf("%s must be of type %s", typeErr.Field, typeErr.Type)
	}
	return err.Error()
}
