// Package metrics exposes Prometheus metrics for source fetches,
// comparisons, the comparison cache and audit runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sells-group/listing-recon/internal/model"
)

// Recorder owns a private registry and the application's collectors.
type Recorder struct {
	registry *prometheus.Registry

	fetchTotal       *prometheus.CounterVec
	fetchDuration    *prometheus.HistogramVec
	fetchCandidates  *prometheus.HistogramVec
	comparisons      prometheus.Counter
	compareDuration  prometheus.Histogram
	consistency      prometheus.Histogram
	criticalIssues   prometheus.Counter
	cacheLookups     *prometheus.CounterVec
	auditedTotal     *prometheus.CounterVec
	lastAuditSuccess prometheus.Gauge
}

// New creates a Recorder with all collectors registered under namespace.
func New(namespace string) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		fetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_fetch_total",
			Help:      "Source fetches by source and resulting status.",
		}, []string{"source", "status"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_fetch_duration_seconds",
			Help:      "Duration of source fetches including matching.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		fetchCandidates: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_candidates",
			Help:      "Candidates returned per source fetch.",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50},
		}, []string{"source"}),
		comparisons: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comparisons_total",
			Help:      "Completed property comparisons.",
		}),
		compareDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "comparison_duration_seconds",
			Help:      "End-to-end duration of property comparisons.",
			Buckets:   prometheus.DefBuckets,
		}),
		consistency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "comparison_consistency_percent",
			Help:      "Overall consistency of completed comparisons.",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),
		criticalIssues: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "critical_issues_total",
			Help:      "Critical issues raised by comparisons.",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Comparison cache lookups by result.",
		}, []string{"result"}),
		auditedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_properties_total",
			Help:      "Properties processed by audit runs by outcome.",
		}, []string{"outcome"}),
		lastAuditSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "audit_last_success_timestamp_seconds",
			Help:      "Unix time of the last completed audit run.",
		}),
	}

	r.registry.MustRegister(
		r.fetchTotal, r.fetchDuration, r.fetchCandidates,
		r.comparisons, r.compareDuration, r.consistency, r.criticalIssues,
		r.cacheLookups, r.auditedTotal, r.lastAuditSuccess,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveFetch records one settled source fetch.
func (r *Recorder) ObserveFetch(source string, status model.SourceStatus, candidates int, d time.Duration) {
	r.fetchTotal.WithLabelValues(source, string(status)).Inc()
	r.fetchDuration.WithLabelValues(source).Observe(d.Seconds())
	if status == model.SourceConnected {
		r.fetchCandidates.WithLabelValues(source).Observe(float64(candidates))
	}
}

// ObserveComparison records one completed comparison.
func (r *Recorder) ObserveComparison(pc *model.PropertyComparison, d time.Duration) {
	r.comparisons.Inc()
	r.compareDuration.Observe(d.Seconds())
	r.consistency.Observe(float64(pc.OverallConsistency))
	r.criticalIssues.Add(float64(len(pc.CriticalIssues)))
}

// CacheHit records a comparison cache hit or miss.
func (r *Recorder) CacheHit(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(result).Inc()
}

// Audited records the outcome of one property in an audit run.
func (r *Recorder) Audited(outcome string) {
	r.auditedTotal.WithLabelValues(outcome).Inc()
}

// AuditCompleted stamps the completion time of an audit run.
func (r *Recorder) AuditCompleted(at time.Time) {
	r.lastAuditSuccess.Set(float64(at.Unix()))
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
