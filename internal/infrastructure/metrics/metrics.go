// Package metrics exposes reconciliation counters to Prometheus.
package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/DanielPopoola/membership-reconciler/internal/application"
	"github.com/DanielPopoola/membership-reconciler/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder implements application.Metrics and gateway.CallObserver.
type Recorder struct {
	registry *prometheus.Registry

	transitions        *prometheus.CounterVec
	activations        *prometheus.CounterVec
	activationFailures *prometheus.CounterVec
	sweepRuns          *prometheus.CounterVec
	sweepItems         *prometheus.CounterVec
	sweepDuration      *prometheus.HistogramVec
	gatewayCalls       *prometheus.CounterVec
	gatewayLatency     *prometheus.HistogramVec
}

var _ application.Metrics = (*Recorder)(nil)

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reconciler_status_transitions_total",
				Help: "Status observations by source and engine outcome.",
			},
			[]string{"source", "outcome"},
		),
		activations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reconciler_activations_total",
				Help: "Membership activations by branch taken (create/extend/metadata/idempotent_skip).",
			},
			[]string{"action"},
		),
		activationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reconciler_activation_failures_total",
				Help: "Activations that failed and were left for the sweep.",
			},
			[]string{"source"},
		),
		sweepRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reconciler_sweep_runs_total",
				Help: "Completed sweep cycles.",
			},
			[]string{"sweeper"},
		),
		sweepItems: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reconciler_sweep_items_total",
				Help: "Items visited by sweeps, split by result.",
			},
			[]string{"sweeper", "result"},
		),
		sweepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reconciler_sweep_duration_seconds",
				Help:    "Wall time of one sweep cycle.",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"sweeper"},
		),
		gatewayCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reconciler_gateway_calls_total",
				Help: "Gateway API calls by operation and result.",
			},
			[]string{"operation", "result"},
		),
		gatewayLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reconciler_gateway_call_duration_seconds",
				Help:    "Gateway API call latency.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}

	r.registry.MustRegister(
		r.transitions,
		r.activations,
		r.activationFailures,
		r.sweepRuns,
		r.sweepItems,
		r.sweepDuration,
		r.gatewayCalls,
		r.gatewayLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) ObserveTransition(source domain.Source, outcome domain.Outcome) {
	r.transitions.WithLabelValues(norm(string(source)), norm(string(outcome))).Inc()
}

func (r *Recorder) ObserveActivation(action domain.PlanAction) {
	r.activations.WithLabelValues(norm(string(action))).Inc()
}

func (r *Recorder) ObserveActivationFailure(source domain.Source) {
	r.activationFailures.WithLabelValues(norm(string(source))).Inc()
}

func (r *Recorder) ObserveSweep(sweeper string, processed, failed int, elapsed time.Duration) {
	sweeper = norm(sweeper)
	r.sweepRuns.WithLabelValues(sweeper).Inc()
	r.sweepItems.WithLabelValues(sweeper, "processed").Add(float64(processed))
	r.sweepItems.WithLabelValues(sweeper, "failed").Add(float64(failed))
	r.sweepDuration.WithLabelValues(sweeper).Observe(elapsed.Seconds())
}

func (r *Recorder) ObserveGatewayCall(operation string, elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.gatewayCalls.WithLabelValues(norm(operation), result).Inc()
	r.gatewayLatency.WithLabelValues(norm(operation)).Observe(elapsed.Seconds())
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
