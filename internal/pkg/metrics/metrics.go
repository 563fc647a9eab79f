// Package metrics holds the prometheus collectors the service records into.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "subscriptions"

type Metrics struct {
	Transitions   *prometheus.CounterVec
	SweepRuns     *prometheus.CounterVec
	SweepExpired  prometheus.Counter
	SweepDuration prometheus.Histogram
	StoreRetries  *prometheus.CounterVec
	HTTPRequests  *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
	EventsDropped *prometheus.CounterVec
	HTTPPanics    *prometheus.CounterVec
}

// New registers every collector on reg. Pass prometheus.DefaultRegisterer
// in the server and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Committed subscription lifecycle transitions.",
		}, []string{"event"}),
		SweepRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_runs_total",
			Help:      "Expiration sweeper ticks by result.",
		}, []string{"result"}),
		SweepExpired: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_expired_total",
			Help:      "Subscriptions moved to EXPIRED by the sweeper.",
		}),
		SweepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of expiration sweeper ticks.",
			Buckets:   prometheus.DefBuckets,
		}),
		StoreRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_retries_total",
			Help:      "Store calls retried after a transient failure.",
		}, []string{"op"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		EventsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Lifecycle events a sink failed to accept.",
		}, []string{"sink"}),
		HTTPPanics: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_panics_total",
			Help:      "Handler panics recovered by route.",
		}, []string{"method", "route"}),
	}
}

// NewNop returns collectors bound to a private registry.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

func (m *Metrics) ObserveSweep(result string, expired int, took time.Duration) {
	m.SweepRuns.WithLabelValues(result).Inc()
	m.SweepExpired.Add(float64(expired))
	m.SweepDuration.Observe(took.Seconds())
}
