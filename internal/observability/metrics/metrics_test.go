package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecordOnRegistry(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveTransition("idle", "recording")
	m.ObserveTransition("idle", "recording")
	m.ObserveRejected("start_recording")
	m.ObserveCapabilityFailure("enable_microphone")
	m.ObserveSendFailure("stop-recording")
	m.ObserveRecording(2 * time.Second)

	if got := testutil.ToFloat64(m.Transitions.WithLabelValues("idle", "recording")); got != 2 {
		t.Fatalf("unexpected transition count: %v", got)
	}
	if got := testutil.ToFloat64(m.Rejected.WithLabelValues("start_recording")); got != 1 {
		t.Fatalf("unexpected rejected count: %v", got)
	}
	if got := testutil.ToFloat64(m.CapabilityFailures.WithLabelValues("enable_microphone")); got != 1 {
		t.Fatalf("unexpected capability failure count: %v", got)
	}
	if got := testutil.ToFloat64(m.ChannelSendFailures.WithLabelValues("stop-recording")); got != 1 {
		t.Fatalf("unexpected send failure count: %v", got)
	}
	if got := testutil.CollectAndCount(m.RecordingDuration); got != 1 {
		t.Fatalf("expected one histogram series, got %d", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.ObserveTransition("a", "b")
	m.ObserveRejected("op")
	m.ObserveCapabilityFailure("op")
	m.ObserveSendFailure("kind")
	m.ObserveRecording(time.Second)
}
