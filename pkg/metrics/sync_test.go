package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSyncMetricsNilSafe(t *testing.T) {
	t.Parallel()

	var m *SyncMetrics
	m.IncRefresh(OutcomeSuccess)
	m.IncMutation("cart", "add", OutcomeFailure)
	m.IncFlush()

	empty := NewSyncMetrics(nil)
	empty.IncRefresh(OutcomeSuccess)
	empty.IncFlush()
}

func TestSyncMetricsCounts(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewSyncMetrics(reg)

	m.IncRefresh(OutcomeSuccess)
	m.IncRefresh(OutcomeSuccess)
	m.IncRefresh(OutcomeFailure)
	m.IncMutation("cart", "add", OutcomeSuccess)
	m.IncMutation("", "toggle", OutcomeFailure)
	m.IncFlush()

	if got := testutil.ToFloat64(m.refresh.WithLabelValues(OutcomeSuccess)); got != 2 {
		t.Fatalf("expected 2 successful refreshes, got %v", got)
	}
	if got := testutil.ToFloat64(m.mutation.WithLabelValues("unknown", "toggle", OutcomeFailure)); got != 1 {
		t.Fatalf("expected empty container label to normalize, got %v", got)
	}
	if got := testutil.ToFloat64(m.flush); got != 1 {
		t.Fatalf("expected 1 flush, got %v", got)
	}
}
