package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveConnections  prometheus.Gauge
	PushEvents         *prometheus.CounterVec
	PrunedConnections  prometheus.Counter
	RateLimitDecisions *prometheus.CounterVec
	TaskEvents         *prometheus.CounterVec
	BackgroundJobs     *prometheus.CounterVec
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_push_connections",
			Help:      "Number of currently open push connections across all users.",
		}),
		PushEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_events_total",
			Help:      "Broadcast events by type.",
		}, []string{"type"}),
		PrunedConnections: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pruned_push_connections_total",
			Help:      "Dead push connections dropped during broadcast.",
		}),
		RateLimitDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_decisions_total",
			Help:      "Feedback admission decisions.",
		}, []string{"decision"}),
		TaskEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_events_total",
			Help:      "Task lifecycle events by type.",
		}, []string{"event"}),
		BackgroundJobs: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "background_jobs_total",
			Help:      "Fire-and-forget jobs by name and outcome.",
		}, []string{"job", "outcome"}),
	}
}

func (m *Metrics) ObserveTaskEvent(event string) {
	m.TaskEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) ObserveRateLimit(allowed bool) {
	decision := "allowed"
	if !allowed {
		decision = "rejected"
	}
	m.RateLimitDecisions.WithLabelValues(decision).Inc()
}

func (m *Metrics) ObserveBackgroundJob(name string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.BackgroundJobs.WithLabelValues(name, outcome).Inc()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
