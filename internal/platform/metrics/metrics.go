package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	AssessmentsTotal *prometheus.CounterVec
	RetriesTotal     *prometheus.CounterVec
	InFlight         prometheus.Gauge
	SessionDuration  prometheus.Histogram

	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	CacheEvictions prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		AssessmentsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "siteaudit_assessments_total",
			Help: "Terminal assessment outcomes by kind and status",
		}, []string{"kind", "status"}),
		RetriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "siteaudit_assessment_retries_total",
			Help: "Retried assessment attempts by kind",
		}, []string{"kind"}),
		InFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "siteaudit_assessments_in_flight",
			Help: "Assessor calls currently in flight",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "siteaudit_session_duration_seconds",
			Help:    "Wall time of assessment sessions",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "siteaudit_cache_hits_total",
			Help: "Result cache hits",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "siteaudit_cache_misses_total",
			Help: "Result cache misses",
		}),
		CacheEvictions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "siteaudit_cache_evictions_total",
			Help: "Result cache evictions",
		}),
	}
}

// ObserveOutcome records one terminal assessment outcome.
func (m *Metrics) ObserveOutcome(kind, status string) {
	m.AssessmentsTotal.WithLabelValues(kind, status).Inc()
}

// ObserveRetry records one retried attempt.
func (m *Metrics) ObserveRetry(kind string) {
	m.RetriesTotal.WithLabelValues(kind).Inc()
}

// ObserveSession records a finished session's wall time.
func (m *Metrics) ObserveSession(d time.Duration) {
	m.SessionDuration.Observe(d.Seconds())
}
