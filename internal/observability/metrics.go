package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels shared by the counters below.
const (
	OutcomeSuccess    = "success"
	OutcomeFailure    = "failure"
	OutcomeDegraded   = "degraded"
	OutcomeApplied    = "applied"
	OutcomeSuperseded = "superseded"
)

// Collector exposes service metrics. A nil *Collector is a valid no-op.
type Collector struct {
	gatherer prometheus.Gatherer

	UpstreamRequests *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec
	RegionalLegs     *prometheus.CounterVec
	Interpretations  *prometheus.CounterVec
	SessionFetches   *prometheus.CounterVec
}

// NewCollector registers the metrics against reg (the default registerer when nil).
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	upstream, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ecosync_upstream_requests_total",
		Help: "Outbound requests to the atmospheric provider and the language model.",
	}, []string{"source", "outcome"}), "ecosync_upstream_requests_total")
	if err != nil {
		return nil, err
	}

	duration, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ecosync_upstream_request_duration_seconds",
		Help:    "Latency of outbound requests.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"source"}), "ecosync_upstream_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	legs, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ecosync_regional_legs_total",
		Help: "Regional lattice point fetches by outcome.",
	}, []string{"outcome"}), "ecosync_regional_legs_total")
	if err != nil {
		return nil, err
	}

	interpretations, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ecosync_interpretations_total",
		Help: "Natural-language query interpretations by outcome.",
	}, []string{"outcome"}), "ecosync_interpretations_total")
	if err != nil {
		return nil, err
	}

	sessions, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ecosync_session_fetches_total",
		Help: "Session fetch settlements: applied, superseded or failed.",
	}, []string{"outcome"}), "ecosync_session_fetches_total")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:         gatherer,
		UpstreamRequests: upstream,
		UpstreamDuration: duration,
		RegionalLegs:     legs,
		Interpretations:  interpretations,
		SessionFetches:   sessions,
	}, nil
}

// Gatherer returns the gatherer backing /metrics.
func (c *Collector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveUpstream records one outbound call.
func (c *Collector) ObserveUpstream(source string, d time.Duration, err error) {
	if c == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	c.UpstreamRequests.WithLabelValues(source, outcome).Inc()
	c.UpstreamDuration.WithLabelValues(source).Observe(d.Seconds())
}

// AddRegionalLegs records settled regional legs.
func (c *Collector) AddRegionalLegs(succeeded, failed int) {
	if c == nil {
		return
	}
	c.RegionalLegs.WithLabelValues(OutcomeSuccess).Add(float64(succeeded))
	c.RegionalLegs.WithLabelValues(OutcomeFailure).Add(float64(failed))
}

// IncInterpretation records an interpretation outcome.
func (c *Collector) IncInterpretation(outcome string) {
	if c == nil {
		return
	}
	c.Interpretations.WithLabelValues(outcome).Inc()
}

// IncSessionFetch records how a session fetch settled.
func (c *Collector) IncSessionFetch(outcome string) {
	if c == nil {
		return
	}
	c.SessionFetches.WithLabelValues(outcome).Inc()
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
