package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the audit log module.
type Metrics struct {
	// Recording
	EventsRecorded   *prometheus.CounterVec
	RecordFailures   prometheus.Counter
	ReasonMismatches prometheus.Counter
	EventsDropped    prometheus.Counter

	// Querying and exporting
	QueryLatency   prometheus.Histogram
	ExportedRows   prometheus.Counter
	FacetCacheHits *prometheus.CounterVec
}

// New creates a Metrics instance with all audit log metrics registered.
func New() *Metrics {
	return &Metrics{
		EventsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gatelog_audit_events_recorded_total",
			Help: "Total audit events successfully appended, by decision outcome",
		}, []string{"outcome"}), // outcome: "allowed", "denied"

		RecordFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatelog_audit_record_failures_total",
			Help: "Total audit events lost to serialization or storage failures",
		}),

		ReasonMismatches: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatelog_audit_reason_mismatches_total",
			Help: "Total recorded events whose reason code disagreed with the decision outcome",
		}),

		EventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatelog_audit_events_dropped_total",
			Help: "Total audit events dropped because the async inbox was full",
		}),

		QueryLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "gatelog_audit_query_duration_seconds",
			Help:    "Duration of audit log queries including facet computation",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),

		ExportedRows: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatelog_audit_exported_rows_total",
			Help: "Total rows streamed through exports",
		}),

		FacetCacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gatelog_audit_facet_cache_requests_total",
			Help: "Facet cache lookups by result",
		}, []string{"result"}), // result: "hit", "miss"
	}
}

// IncRecorded records a successful append for the given outcome.
func (m *Metrics) IncRecorded(allowed bool) {
	if m != nil {
		outcome := "denied"
		if allowed {
			outcome = "allowed"
		}
		m.EventsRecorded.WithLabelValues(outcome).Inc()
	}
}

// IncRecordFailure records a lost event.
func (m *Metrics) IncRecordFailure() {
	if m != nil {
		m.RecordFailures.Inc()
	}
}

// IncReasonMismatch records a reason/outcome invariant violation.
func (m *Metrics) IncReasonMismatch() {
	if m != nil {
		m.ReasonMismatches.Inc()
	}
}

// IncDropped records an event dropped by the async inbox.
func (m *Metrics) IncDropped() {
	if m != nil {
		m.EventsDropped.Inc()
	}
}

// ObserveQueryLatency records the duration of a query.
func (m *Metrics) ObserveQueryLatency(d time.Duration) {
	if m != nil {
		m.QueryLatency.Observe(d.Seconds())
	}
}

// AddExportedRows records rows streamed by an export.
func (m *Metrics) AddExportedRows(n int) {
	if m != nil {
		m.ExportedRows.Add(float64(n))
	}
}

// IncFacetCache records a facet cache lookup result.
func (m *Metrics) IncFacetCache(hit bool) {
	if m != nil {
		result := "miss"
		if hit {
			result = "hit"
		}
		m.FacetCacheHits.WithLabelValues(result).Inc()
	}
}
