package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c.ObserveUpstream("nasa-power", 20*time.Millisecond, nil)
	c.ObserveUpstream("nasa-power", time.Second, errors.New("boom"))
	c.AddRegionalLegs(30, 6)
	c.IncInterpretation(OutcomeDegraded)
	c.IncSessionFetch(OutcomeSuperseded)

	if got := testutil.ToFloat64(c.UpstreamRequests.WithLabelValues("nasa-power", OutcomeFailure)); got != 1 {
		t.Fatalf("expected 1 failed upstream request, got %v", got)
	}
	if got := testutil.ToFloat64(c.RegionalLegs.WithLabelValues(OutcomeFailure)); got != 6 {
		t.Fatalf("expected 6 failed legs, got %v", got)
	}
	if got := testutil.ToFloat64(c.SessionFetches.WithLabelValues(OutcomeSuperseded)); got != 1 {
		t.Fatalf("expected 1 superseded fetch, got %v", got)
	}
	if c.Gatherer() != reg {
		t.Fatal("expected the registry to back /metrics")
	}
}

func TestCollectorReusesRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("second registration failed: %v", err)
	}
	second.IncInterpretation(OutcomeSuccess)
	if got := testutil.ToFloat64(first.Interpretations.WithLabelValues(OutcomeSuccess)); got != 1 {
		t.Fatalf("expected shared counter, got %v", got)
	}
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	c.ObserveUpstream("x", time.Millisecond, nil)
	c.AddRegionalLegs(1, 1)
	c.IncInterpretation(OutcomeSuccess)
	c.IncSessionFetch(OutcomeApplied)
	if c.Gatherer() != nil {
		t.Fatal("expected nil gatherer")
	}
}
