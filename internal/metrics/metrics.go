// Package metrics provides Prometheus metrics for the task and ranking engine.
package metrics

import (
	"time"

	"github.com/nadmax/medrank/internal/task"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TaskTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medrank_task_transitions_total",
			Help: "Total number of successful task lifecycle mutations",
		},
		[]string{"action"},
	)
	TaskOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medrank_task_operation_errors_total",
			Help: "Total number of rejected task operations by error code",
		},
		[]string{"operation", "code"},
	)
	TasksByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "medrank_tasks",
			Help: "Current number of tasks by status",
		},
		[]string{"status"},
	)
	RankingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "medrank_ranking_duration_seconds",
			Help:    "Time spent recomputing student rankings from a task snapshot",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)
	RankingsCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medrank_rankings_cache_lookups_total",
			Help: "Rankings cache lookups by result",
		},
		[]string{"result"},
	)
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medrank_events_published_total",
			Help: "Lifecycle events handed to a publisher",
		},
		[]string{"sink", "result"},
	)
	EventHandlerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "medrank_event_handler_duration_seconds",
			Help:    "Event handler execution duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"action", "status"},
	)
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medrank_notifications_sent_total",
			Help: "Assignment notifications by result",
		},
		[]string{"result"},
	)
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medrank_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "medrank_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

func RecordTransition(action task.Action) {
	TaskTransitions.WithLabelValues(string(action)).Inc()
}

func RecordOperationError(operation, code string) {
	TaskOperationErrors.WithLabelValues(operation, code).Inc()
}

func UpdateTasksByStatus(counts map[task.TaskStatus]int) {
	TasksByStatus.Reset()
	for _, s := range []task.TaskStatus{task.StatusPending, task.StatusAccepted, task.StatusRejected, task.StatusCompleted} {
		TasksByStatus.WithLabelValues(string(s)).Set(float64(counts[s]))
	}
}

func RecordRankingComputation(duration time.Duration) {
	RankingDuration.Observe(duration.Seconds())
}

func RecordCacheLookup(result string) {
	RankingsCacheLookups.WithLabelValues(result).Inc()
}

func RecordEventPublished(sink string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	EventsPublished.WithLabelValues(sink, result).Inc()
}

func RecordEventHandled(action task.Action, duration time.Duration, err error) {
	status := "completed"
	if err != nil {
		status = "failed"
	}
	EventHandlerDuration.WithLabelValues(string(action), status).Observe(duration.Seconds())
}

func RecordNotification(result string) {
	NotificationsSent.WithLabelValues(result).Inc()
}

func RecordHTTPRequest(method, endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
