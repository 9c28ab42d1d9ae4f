package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// UpdatePointTotal counts calls to Repository.UpdatePoint by
	// outcome: "committed", "aborted", or "failed".
	UpdatePointTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holdfast_update_point_total",
			Help: "Total publication point updates by outcome",
		},
		[]string{"outcome"},
	)

	// UpdatePointDuration observes the wall-clock time spent inside
	// Repository.UpdatePoint, including any retried attempts.
	UpdatePointDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "holdfast_update_point_duration_seconds",
			Help:    "Duration of publication point update transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	// DecodeErrorsTotal counts records that failed to decode, by
	// keyspace: "manifest", "object", or "key".
	DecodeErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holdfast_decode_errors_total",
			Help: "Total records or keys that failed to decode",
		},
		[]string{"keyspace"},
	)

	// CleanupExpiredTotal counts publication points removed by Cleanup:
	// those with an expired manifest, plus those whose manifest record
	// failed to decode or whose rsync manifest URI failed to parse.
	CleanupExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "holdfast_cleanup_expired_total",
			Help: "Total publication points removed by cleanup",
		},
	)

	// CleanupRetainedTotal counts publication points that survived a
	// cleanup pass because their manifest had not yet expired.
	CleanupRetainedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "holdfast_cleanup_retained_total",
			Help: "Total publication points retained by cleanup",
		},
	)

	// CleanupDuration observes the wall-clock time a full Cleanup pass
	// takes.
	CleanupDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "holdfast_cleanup_duration_seconds",
			Help:    "Duration of a full cleanup pass",
			Buckets: prometheus.DefBuckets,
		},
	)

	// TrustAnchorUpdatesTotal counts calls to Run.UpdateTA.
	TrustAnchorUpdatesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "holdfast_trust_anchor_updates_total",
			Help: "Total trust anchor certificate updates",
		},
	)
)

// MustRegister registers every metric this package defines with reg. It
// panics if a metric of the same name is already registered, matching
// prometheus.MustRegister's own contract; callers that need to tolerate
// re-registration (as in repeated test setup) should use a fresh
// prometheus.Registry per call.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		UpdatePointTotal,
		UpdatePointDuration,
		DecodeErrorsTotal,
		CleanupExpiredTotal,
		CleanupRetainedTotal,
		CleanupDuration,
		TrustAnchorUpdatesTotal,
	)
}

// Timer measures an operation's duration from construction to whenever
// its Observe* methods are called.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since NewTimer. It can be called
// more than once; each call reflects the time elapsed up to that call.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed duration to h.
func (t *Timer) ObserveDuration(h prometheus.Histogram) {
	h.Observe(t.Duration().Seconds())
}

// ObserveDurationVec records the elapsed duration to the member of hv
// identified by labelValues.
func (t *Timer) ObserveDurationVec(hv *prometheus.HistogramVec, labelValues ...string) {
	hv.WithLabelValues(labelValues...).Observe(t.Duration().Seconds())
}
