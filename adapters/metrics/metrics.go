// Package metrics provides Prometheus metrics collection for YASL.
package metrics

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/artpar/yasl/ports"
)

// Outcome labels for RunsTotal.
const (
	OutcomePass = "pass"
	OutcomeFail = "fail"
)

// Collector holds all Prometheus metrics for YASL.
type Collector struct {
	// Validation run metrics
	RunsTotal    *prometheus.CounterVec
	RunDuration  prometheus.Histogram
	RunsInFlight prometheus.Gauge

	// Violation metrics
	ViolationsTotal *prometheus.CounterVec
	RecordsTotal    prometheus.Counter

	// Schema metrics
	SchemaBuilds      prometheus.Counter
	SchemaBuildErrors prometheus.Counter

	// Reachability metrics
	ReachabilityChecks   prometheus.Counter
	ReachabilityTimeouts prometheus.Counter
}

// New creates a metrics collector registered on the default registry.
func New() *Collector {
	return newWith(promauto.With(prometheus.DefaultRegisterer))
}

// NewWithRegistry creates a metrics collector on a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	return newWith(promauto.With(reg))
}

func newWith(factory promauto.Factory) *Collector {
	return &Collector{
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "yasl",
				Name:      "runs_total",
				Help:      "Total number of validation runs",
			},
			[]string{"outcome"},
		),
		RunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "yasl",
				Name:      "run_duration_seconds",
				Help:      "Validation run duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),
		RunsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "yasl",
				Name:      "runs_in_flight",
				Help:      "Number of validation runs currently executing",
			},
		),
		ViolationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "yasl",
				Name:      "violations_total",
				Help:      "Total violations found, by rule",
			},
			[]string{"rule"},
		),
		RecordsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "yasl",
				Name:      "records_total",
				Help:      "Total number of records validated",
			},
		),
		SchemaBuilds: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "yasl",
				Name:      "schema_builds_total",
				Help:      "Total number of successful schema builds",
			},
		),
		SchemaBuildErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "yasl",
				Name:      "schema_build_errors_total",
				Help:      "Total number of schema builds rejected with structural errors",
			},
		),
		ReachabilityChecks: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "yasl",
				Name:      "reachability_checks_total",
				Help:      "Total number of URL reachability probes",
			},
		),
		ReachabilityTimeouts: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "yasl",
				Name:      "reachability_timeouts_total",
				Help:      "Total number of reachability probes that hit the deadline",
			},
		),
	}
}

// WrapReachability decorates a probe port so every check, and every
// check that hits its deadline, is counted.
func (c *Collector) WrapReachability(next ports.Reachability) ports.Reachability {
	return countingReachability{next: next, c: c}
}

type countingReachability struct {
	next ports.Reachability
	c    *Collector
}

func (r countingReachability) Check(ctx context.Context, url string) error {
	r.c.ReachabilityChecks.Inc()
	err := r.next.Check(ctx, url)
	if errors.Is(err, context.DeadlineExceeded) {
		r.c.ReachabilityTimeouts.Inc()
	}
	return err
}

// ObserveReport feeds a finished validation report into the collector.
func (c *Collector) ObserveReport(failed bool, ruleCounts map[string]int) {
	outcome := OutcomePass
	if failed {
		outcome = OutcomeFail
	}
	c.RunsTotal.WithLabelValues(outcome).Inc()
	for rule, n := range ruleCounts {
		c.ViolationsTotal.WithLabelValues(rule).Add(float64(n))
	}
}
