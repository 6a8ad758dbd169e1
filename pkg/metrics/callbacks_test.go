package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCallbackMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCallbackMetrics(reg)

	metrics.IncOutcome("processed")
	metrics.IncOutcome("processed")
	metrics.IncOutcome("rejected")
	metrics.IncOutcome("")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "daraja_callback_total", "outcome", "processed"); err != nil {
		t.Fatalf("fetch processed: %v", err)
	} else if got != 2 {
		t.Fatalf("expected processed=2, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "daraja_callback_total", "outcome", "unknown"); err != nil {
		t.Fatalf("fetch unknown: %v", err)
	} else if got != 1 {
		t.Fatalf("expected unknown=1, got %f", got)
	}
}

func TestCallbackMetricsNilSafe(t *testing.T) {
	var metrics *CallbackMetrics
	metrics.IncOutcome("processed")

	empty := NewCallbackMetrics(nil)
	empty.IncOutcome("processed")
}
