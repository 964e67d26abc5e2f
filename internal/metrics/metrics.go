// Package metrics exposes rate limit decisions and counter store latency to Prometheus.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/serroba/millennium-gate/internal/ratelimit"
)

const namespace = "millennium_gate"

const (
	OutcomeAllowed  = "allowed"
	OutcomeDenied   = "denied"
	OutcomeDegraded = "degraded"
)

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	registry     *prometheus.Registry
	decisions    *prometheus.CounterVec
	storeLatency *prometheus.HistogramVec
	storeErrors  *prometheus.CounterVec
}

// New creates the collectors and registers them with runtime collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "decisions_total",
			Help:      "Rate limit decisions by action and outcome.",
		}, []string{"action", "outcome"}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "store_increment_duration_seconds",
			Help:      "Latency of counter store increments.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"store"}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "store_errors_total",
			Help:      "Failed counter store increments.",
		}, []string{"store"}),
	}

	m.registry.MustRegister(
		m.decisions,
		m.storeLatency,
		m.storeErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the registry backing Handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveDecision(_ context.Context, _, action string, decision ratelimit.Decision) {
	m.decisions.WithLabelValues(action, outcome(decision)).Inc()
}

func outcome(decision ratelimit.Decision) string {
	switch {
	case decision.StoreError:
		return OutcomeDegraded
	case !decision.Allowed:
		return OutcomeDenied
	default:
		return OutcomeAllowed
	}
}

// InstrumentStore wraps store so every increment is timed under the name label.
func (m *Metrics) InstrumentStore(store ratelimit.CounterStore, name string) ratelimit.CounterStore {
	return &instrumentedStore{
		next:    store,
		latency: m.storeLatency.WithLabelValues(name),
		errors:  m.storeErrors.WithLabelValues(name),
	}
}

type instrumentedStore struct {
	next    ratelimit.CounterStore
	latency prometheus.Observer
	errors  prometheus.Counter
}

func (s *instrumentedStore) IncrementAndGet(ctx context.Context, key ratelimit.WindowKey) (int64, error) {
	start := time.Now()

	count, err := s.next.IncrementAndGet(ctx, key)

	s.latency.Observe(time.Since(start).Seconds())

	if err != nil {
		s.errors.Inc()
	}

	return count, err
}

// Compile-time check.
var _ ratelimit.Observer = (*Metrics)(nil)
