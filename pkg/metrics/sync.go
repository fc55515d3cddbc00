package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// SyncMetrics records client-side synchronization activity.
type SyncMetrics struct {
	refresh  *prometheus.CounterVec
	mutation *prometheus.CounterVec
	flush    prometheus.Counter
}

// NewSyncMetrics registers the synchronizer metrics on the provided registerer.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	refresh := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "session_refresh_total",
		Help: "Token refresh attempts by outcome.",
	}, []string{"outcome"})
	mutation := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "store_mutation_total",
		Help: "Optimistic store mutations by container, operation, and outcome.",
	}, []string{"container", "op", "outcome"})
	flush := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "store_flush_total",
		Help: "Cross-store invalidation flushes.",
	})
	reg.MustRegister(refresh, mutation, flush)
	return &SyncMetrics{
		refresh:  refresh,
		mutation: mutation,
		flush:    flush,
	}
}

// IncRefresh increments the refresh counter for the given outcome.
func (s *SyncMetrics) IncRefresh(outcome string) {
	if s == nil || s.refresh == nil {
		return
	}
	s.refresh.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncMutation increments the mutation counter for the given container/op/outcome.
func (s *SyncMetrics) IncMutation(container, op, outcome string) {
	if s == nil || s.mutation == nil {
		return
	}
	s.mutation.WithLabelValues(normalizeLabel(container), normalizeLabel(op), normalizeLabel(outcome)).Inc()
}

// IncFlush increments the invalidation flush counter.
func (s *SyncMetrics) IncFlush() {
	if s == nil || s.flush == nil {
		return
	}
	s.flush.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
