package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors an Engine reports to.
//
// Collectors are registered on the Registerer given to NewMetrics rather
// than the global default, so tests and the CLI each own their registry.
type Metrics struct {
	queriesTotal  *prometheus.CounterVec
	queryDuration prometheus.Histogram
	rowsReturned  prometheus.Histogram
	bindingsTotal prometheus.Counter
}

// Query outcome labels for aql_engine_queries_total.
const (
	outcomeOK        = "ok"
	outcomeSyntax    = "syntax_error"
	outcomeUnbound   = "unbound_parameter"
	outcomeLimit     = "limit_error"
	outcomeCancelled = "cancelled"
	outcomeError     = "error"
)

// NewMetrics creates and registers the engine collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		queriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aql",
			Subsystem: "engine",
			Name:      "queries_total",
			Help: `The cumulative number of executed queries, by outcome.

Outcomes are ok, syntax_error, unbound_parameter, limit_error, cancelled
and error (record source failures).`,
		}, []string{"outcome"}),
		queryDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "aql",
			Subsystem: "engine",
			Name:      "query_duration_seconds",
			Help:      "Wall-clock time of Execute, from parse to paginated result.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
		rowsReturned: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "aql",
			Subsystem: "engine",
			Name:      "rows_returned",
			Help:      "Rows returned per successful query, after pagination.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		bindingsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: "aql",
			Subsystem: "engine",
			Name:      "bindings_total",
			Help: `The cumulative number of candidate nodes bound by FROM scans.

A fast-growing value relative to queries_total points at broad
containment chains that are missing archetype filters.`,
		}),
	}
}

func (m *Metrics) observe(outcome string, seconds float64, rows int) {
	if m == nil {
		return
	}
	m.queriesTotal.WithLabelValues(outcome).Inc()
	m.queryDuration.Observe(seconds)
	if outcome == outcomeOK {
		m.rowsReturned.Observe(float64(rows))
	}
}

func (m *Metrics) addBindings(n int) {
	if m == nil || n == 0 {
		return
	}
	m.bindingsTotal.Add(float64(n))
}
