package metrics

import (
	"github.com/relaymesh/gateway/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// RouterMetrics tracks metrics related to Smart Router candidate selection
// and Health & Quota Store circuit state.
//
// Metrics:
//   - relaymesh_router_candidates_returned: Candidates returned per GetCandidates call
//   - relaymesh_router_decisions_total: Router outcomes (ok, no_candidates, budget_exceeded)
//   - relaymesh_router_circuit_state: Per-provider circuit breaker state (1=open, 0=closed)
type RouterMetrics struct {
	candidatesReturned *prometheus.HistogramVec
	decisions          *prometheus.CounterVec
	circuitState       *prometheus.GaugeVec
}

// NewRouterMetrics creates and registers router metrics with the provided registry.
func NewRouterMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RouterMetrics {
	rm := &RouterMetrics{
		candidatesReturned: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "router_candidates_returned",
				Help:      "Number of candidates GetCandidates returned for a requested model",
				Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
			},
			[]string{"model"},
		),

		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "router_decisions_total",
				Help:      "Total router outcomes by result",
			},
			[]string{"model", "outcome"},
		),

		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "router_circuit_state",
				Help:      "Per-provider circuit breaker state (1=open, 0=closed)",
			},
			[]string{"provider"},
		),
	}

	registry.MustRegister(
		rm.candidatesReturned,
		rm.decisions,
		rm.circuitState,
	)

	return rm
}

// RecordCandidates records how many candidates a GetCandidates call returned
// for requestedModel, and the decision outcome ("ok", "no_candidates",
// "budget_exceeded").
func (rm *RouterMetrics) RecordCandidates(requestedModel, outcome string, count int) {
	rm.decisions.WithLabelValues(requestedModel, outcome).Inc()
	if outcome == "ok" {
		rm.candidatesReturned.WithLabelValues(requestedModel).Observe(float64(count))
	}
}

// UpdateCircuitState updates the circuit breaker gauge for provider.
func (rm *RouterMetrics) UpdateCircuitState(provider string, open bool) {
	value := 0.0
	if open {
		value = 1.0
	}
	rm.circuitState.WithLabelValues(provider).Set(value)
}
