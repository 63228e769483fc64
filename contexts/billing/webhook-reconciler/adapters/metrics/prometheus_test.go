package metricsadapter

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusCountsOutcomes(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewPrometheus(registry)

	metrics.ObserveEvent("checkout_completed", "applied", 15*time.Millisecond)
	metrics.ObserveEvent("checkout_completed", "duplicate", time.Millisecond)
	metrics.ObserveEvent("checkout_completed", "applied", 10*time.Millisecond)
	metrics.SignatureFailure()

	if got := testutil.ToFloat64(metrics.events.WithLabelValues("checkout_completed", "applied")); got != 2 {
		t.Fatalf("expected 2 applied events, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.signatureFailures); got != 1 {
		t.Fatalf("expected 1 signature failure, got %v", got)
	}
	if count := testutil.CollectAndCount(metrics.duration); count != 1 {
		t.Fatalf("expected one duration series, got %d", count)
	}
}
