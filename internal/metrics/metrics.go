// Package metrics exposes Prometheus collectors on a dedicated registry so
// the /metrics endpoint only carries this service's series.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var Registry = prometheus.NewRegistry()

var (
	JobsSubmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "routeplan_jobs_submitted_total",
		Help: "Optimization jobs accepted, by outcome of submission (new, cached, rejected).",
	}, []string{"outcome"})

	JobsRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "routeplan_jobs_running",
		Help: "Optimization jobs currently executing.",
	})

	JobsFinished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "routeplan_jobs_finished_total",
		Help: "Optimization jobs reaching a terminal state, by status.",
	}, []string{"status"})

	JobDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "routeplan_job_duration_seconds",
		Help:    "Wall time of optimization jobs.",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	})

	SolverRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "routeplan_solver_requests_total",
		Help: "Calls to the external solver, by result.",
	}, []string{"result"})

	SolverFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "routeplan_solver_fallbacks_total",
		Help: "Batches solved by the nearest-neighbor fallback.",
	})

	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "routeplan_http_requests_total",
		Help: "HTTP requests served, by method and status class.",
	}, []string{"method", "status"})

	WebhookDeliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "routeplan_webhook_deliveries_total",
		Help: "Webhook delivery attempts, by result.",
	}, []string{"result"})
)

func init() {
	Registry.MustRegister(
		JobsSubmitted, JobsRunning, JobsFinished, JobDuration,
		SolverRequests, SolverFallbacks, HTTPRequests, WebhookDeliveries,
	)
}

// Handler serves the dedicated registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
