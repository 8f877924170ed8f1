// Package observability exposes Prometheus metrics for the client core.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wricardo/mcp-training/merge2048/game/reconcile"
)

// Metrics groups the collectors recorded by sessions.
type Metrics struct {
	// Transitions counts finished cycles by outcome: committed, abandoned,
	// transport_error, invalid_snapshot.
	Transitions *prometheus.CounterVec
	// DroppedMoves counts moves rejected because a cycle was in flight.
	DroppedMoves prometheus.Counter
	// Ops counts animation ops by kind.
	Ops *prometheus.CounterVec
	// Issues counts reconciliation inconsistencies by kind.
	Issues *prometheus.CounterVec
	// Fallbacks counts frames rebuilt from spawns after a double claim.
	Fallbacks prometheus.Counter
	// ScoreMismatches counts transitions whose merges disagree with the score delta.
	ScoreMismatches prometheus.Counter
	// CycleDuration observes request-to-commit latency.
	CycleDuration prometheus.Histogram
	// ActiveSessions tracks live client sessions.
	ActiveSessions prometheus.Gauge
}

// NewMetrics registers the collectors on reg. A nil reg uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "merge2048",
			Name:      "transitions_total",
			Help:      "Transitions by outcome",
		}, []string{"outcome"}),
		DroppedMoves: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "merge2048",
			Name:      "dropped_moves_total",
			Help:      "Moves dropped while a cycle was in flight",
		}),
		Ops: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "merge2048",
			Name:      "animation_ops_total",
			Help:      "Animation ops by kind",
		}, []string{"kind"}),
		Issues: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "merge2048",
			Name:      "reconcile_issues_total",
			Help:      "Reconciliation inconsistencies by kind",
		}, []string{"kind"}),
		Fallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "merge2048",
			Name:      "reconcile_fallbacks_total",
			Help:      "Frames redrawn as spawns after an identity was claimed twice",
		}),
		ScoreMismatches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "merge2048",
			Name:      "score_mismatches_total",
			Help:      "Transitions whose merged values differ from the reported score delta",
		}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "merge2048",
			Name:      "cycle_duration_seconds",
			Help:      "Time from request to committed frame",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "merge2048",
			Name:      "active_sessions",
			Help:      "Client sessions currently hosted",
		}),
	}
}

// ObserveReconcile records the ops and issues of one reconciliation.
func (m *Metrics) ObserveReconcile(res reconcile.Result) {
	if m == nil {
		return
	}
	for _, op := range res.Ops {
		m.Ops.WithLabelValues(op.Kind.String()).Inc()
	}
	for _, issue := range res.Issues {
		m.Issues.WithLabelValues(issue.Kind.String()).Inc()
	}
	if res.Fallback {
		m.Fallbacks.Inc()
	}
}

// ObserveTransition records the outcome of a cycle started at start.
func (m *Metrics) ObserveTransition(outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(outcome).Inc()
	if outcome == OutcomeCommitted && !start.IsZero() {
		m.CycleDuration.Observe(time.Since(start).Seconds())
	}
}

// ObserveDroppedMove records a move rejected while busy.
func (m *Metrics) ObserveDroppedMove() {
	if m == nil {
		return
	}
	m.DroppedMoves.Inc()
}

// ObserveScoreMismatch records a failed conservation check.
func (m *Metrics) ObserveScoreMismatch() {
	if m == nil {
		return
	}
	m.ScoreMismatches.Inc()
}

// Transition outcomes.
const (
	OutcomeCommitted       = "committed"
	OutcomeAbandoned       = "abandoned"
	OutcomeTransportError  = "transport_error"
	OutcomeInvalidSnapshot = "invalid_snapshot"
)
