package metrics_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/artpar/yasl/adapters/metrics"
)

// stubProbe answers every reachability check with a fixed error.
type stubProbe struct{ err error }

func (s stubProbe) Check(ctx context.Context, url string) error { return s.err }

func TestObserveReport(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewWithRegistry(reg)

	c.ObserveReport(true, map[string]int{"required": 2, "unique": 1})
	c.ObserveReport(false, nil)

	if got := testutil.ToFloat64(c.RunsTotal.WithLabelValues(metrics.OutcomeFail)); got != 1 {
		t.Errorf("runs_total{outcome=fail} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.RunsTotal.WithLabelValues(metrics.OutcomePass)); got != 1 {
		t.Errorf("runs_total{outcome=pass} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.ViolationsTotal.WithLabelValues("required")); got != 2 {
		t.Errorf("violations_total{rule=required} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.ViolationsTotal.WithLabelValues("unique")); got != 1 {
		t.Errorf("violations_total{rule=unique} = %v, want 1", got)
	}
}

func TestWrapReachability(t *testing.T) {
	c := metrics.NewWithRegistry(prometheus.NewRegistry())
	ok := c.WrapReachability(stubProbe{})
	slow := c.WrapReachability(stubProbe{err: context.DeadlineExceeded})

	ctx := context.Background()
	_ = ok.Check(ctx, "https://example.org")
	_ = slow.Check(ctx, "https://example.org")
	_ = slow.Check(ctx, "https://example.org")

	if got := testutil.ToFloat64(c.ReachabilityChecks); got != 3 {
		t.Errorf("reachability_checks_total = %v, want 3", got)
	}
	if got := testutil.ToFloat64(c.ReachabilityTimeouts); got != 2 {
		t.Errorf("reachability_timeouts_total = %v, want 2", got)
	}
}

func TestNewWithRegistry_Isolated(t *testing.T) {
	// Two collectors on separate registries must not collide.
	a := metrics.NewWithRegistry(prometheus.NewRegistry())
	b := metrics.NewWithRegistry(prometheus.NewRegistry())

	a.RecordsTotal.Add(5)
	if got := testutil.ToFloat64(b.RecordsTotal); got != 0 {
		t.Errorf("records_total on second registry = %v, want 0", got)
	}
}
