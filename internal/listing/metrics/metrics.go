package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the listing lifecycle.
type Metrics struct {
	// Lifecycle operation outcomes by operation and error code ("ok" on success)
	Operations *prometheus.CounterVec

	OperationLatency *prometheus.HistogramVec

	// Optimistic concurrency retries by operation
	ConflictRetries *prometheus.CounterVec

	// Post-commit event emissions by event type and outcome
	EventsEmitted *prometheus.CounterVec

	// Snapshot cache lookups by result: hit, miss, error, bypass
	CacheLookups *prometheus.CounterVec
}

// New registers listing metrics with reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hearth_listing_operations_total",
			Help: "Listing lifecycle operations by operation and outcome",
		}, []string{"operation", "outcome"}),

		OperationLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hearth_listing_operation_duration_seconds",
			Help:    "Duration of listing lifecycle operations including retries",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),

		ConflictRetries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hearth_listing_conflict_retries_total",
			Help: "Units of work retried after an optimistic concurrency conflict",
		}, []string{"operation"}),

		EventsEmitted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hearth_listing_events_total",
			Help: "Listing events handed to the event sink by type and outcome",
		}, []string{"event_type", "outcome"}),

		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hearth_listing_snapshot_cache_lookups_total",
			Help: "Version snapshot cache lookups by result",
		}, []string{"result"}),
	}
}

func (m *Metrics) ObserveOperation(operation, outcome string, d time.Duration) {
	if m != nil {
		m.Operations.WithLabelValues(operation, outcome).Inc()
		m.OperationLatency.WithLabelValues(operation).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementConflictRetry(operation string) {
	if m != nil {
		m.ConflictRetries.WithLabelValues(operation).Inc()
	}
}

func (m *Metrics) IncrementEvent(eventType, outcome string) {
	if m != nil {
		m.EventsEmitted.WithLabelValues(eventType, outcome).Inc()
	}
}

func (m *Metrics) IncrementCacheLookup(result string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(result).Inc()
	}
}
