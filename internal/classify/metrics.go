package classify

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for classification runs. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// Query outcomes by status and assigned rank
	Outcomes *prometheus.CounterVec

	// Rank lifts per classified query
	Lifts prometheus.Histogram

	// Hits dropped before consensus, by reason
	DroppedHits *prometheus.CounterVec

	// Failed queries by error kind
	Failures *prometheus.CounterVec

	// Per-query classification latency including taxonomy lookups
	ClassifyLatency prometheus.Histogram
}

// NewMetrics creates the classification metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "taxassign_query_outcomes_total",
			Help: "Classified and unclassified queries by assigned rank",
		}, []string{"status", "rank"}),

		Lifts: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "taxassign_query_rank_lifts",
			Help:    "Number of rank lifts needed to reach consensus",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
		}),

		DroppedHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "taxassign_hits_dropped_total",
			Help: "Hits excluded from consensus by reason",
		}, []string{"reason"}), // reason: "quality", "unplaced"

		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "taxassign_query_failures_total",
			Help: "Queries that ended in an error by kind",
		}, []string{"kind"}), // kind: "lookup", "canceled", "other"

		ClassifyLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "taxassign_classify_duration_seconds",
			Help:    "Duration of one query classification including taxonomy lookups",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

// ObserveResult records the outcome of a finished query.
func (m *Metrics) ObserveResult(r *Result, d time.Duration) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(string(r.Status), r.RankName()).Inc()
	if r.Classified() {
		m.Lifts.Observe(float64(r.Lifts))
	}
	m.ClassifyLatency.Observe(d.Seconds())
}

// IncrementDropped records hits excluded for reason.
func (m *Metrics) IncrementDropped(reason string, n int) {
	if m != nil && n > 0 {
		m.DroppedHits.WithLabelValues(reason).Add(float64(n))
	}
}

// IncrementFailure records a query that ended in an error.
func (m *Metrics) IncrementFailure(kind string) {
	if m != nil {
		m.Failures.WithLabelValues(kind).Inc()
	}
}
