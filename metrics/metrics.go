// Package metrics exposes Prometheus collectors for the evaluation workflow.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every collector the services report into.
type Metrics struct {
	registry *prometheus.Registry

	ClaimsTotal      *prometheus.CounterVec
	LocksReapedTotal prometheus.Counter
	EvaluationsTotal prometheus.Counter
	DisputesFiled    prometheus.Counter
	DisputesResolved *prometheus.CounterVec
	NotifyFailures   prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ClaimsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "qaflow_audit_claims_total",
			Help: "Audit claim attempts by result (acquired, conflict, not_found, error).",
		}, []string{"result"}),
		LocksReapedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "qaflow_locks_reaped_total",
			Help: "Stale audit locks force-released by the reaper.",
		}),
		EvaluationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "qaflow_evaluations_submitted_total",
			Help: "Evaluations persisted by the scorer.",
		}),
		DisputesFiled: factory.NewCounter(prometheus.CounterOpts{
			Name: "qaflow_disputes_filed_total",
			Help: "Disputes accepted against completed evaluations.",
		}),
		DisputesResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "qaflow_disputes_resolved_total",
			Help: "Disputes closed by final status.",
		}, []string{"status"}),
		NotifyFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "qaflow_notify_failures_total",
			Help: "Notification sends that failed and were swallowed.",
		}),
	}
}

// Handler serves the scrape endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
