// Package metrics exposes the prometheus collectors of the health check
// service. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the lifecycle manager and list queries.
type Metrics struct {
	// Committed transitions by command and resulting status
	Transitions *prometheus.CounterVec

	// Rejected commands by command and reason (validation, invalid_transition, conflict, forbidden)
	Rejections *prometheus.CounterVec

	// Post-commit side effects by kind and outcome
	SideEffects *prometheus.CounterVec

	QueryLatency *prometheus.HistogramVec
	QueryResults *prometheus.HistogramVec

	HTTPRequests *prometheus.CounterVec
}

// New creates a Metrics instance registered with reg. A nil reg registers
// with the prometheus default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "healthcheck_transitions_total",
			Help: "Committed lifecycle transitions by command and new status",
		}, []string{"command", "status"}),

		Rejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "healthcheck_command_rejections_total",
			Help: "Lifecycle commands rejected before commit",
		}, []string{"command", "reason"}),

		SideEffects: f.NewCounterVec(prometheus.CounterOpts{
			Name: "healthcheck_side_effects_total",
			Help: "Post-commit side effects by kind and outcome",
		}, []string{"kind", "outcome"}), // outcome: "ok", "failed", "skipped"

		QueryLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "healthcheck_query_duration_seconds",
			Help:    "Duration of filtered list queries by record type",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"record"}),

		QueryResults: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "healthcheck_query_results",
			Help:    "Number of records returned by filtered list queries",
			Buckets: prometheus.ExponentialBuckets(1, 4, 7),
		}, []string{"record"}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "healthcheck_http_requests_total",
			Help: "HTTP requests by method, route and status code",
		}, []string{"method", "route", "code"}),
	}
}

// IncTransition records a committed transition.
func (m *Metrics) IncTransition(command, status string) {
	if m != nil {
		m.Transitions.WithLabelValues(command, status).Inc()
	}
}

// IncRejection records a command rejected before commit.
func (m *Metrics) IncRejection(command, reason string) {
	if m != nil {
		m.Rejections.WithLabelValues(command, reason).Inc()
	}
}

// IncSideEffect records the outcome of a post-commit side effect.
func (m *Metrics) IncSideEffect(kind, outcome string) {
	if m != nil {
		m.SideEffects.WithLabelValues(kind, outcome).Inc()
	}
}

// ObserveQuery records one list query over record type.
func (m *Metrics) ObserveQuery(record string, d time.Duration, results int) {
	if m != nil {
		m.QueryLatency.WithLabelValues(record).Observe(d.Seconds())
		m.QueryResults.WithLabelValues(record).Observe(float64(results))
	}
}

// IncHTTPRequest records one served request.
func (m *Metrics) IncHTTPRequest(method, route, code string) {
	if m != nil {
		m.HTTPRequests.WithLabelValues(method, route, code).Inc()
	}
}
