package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

const metricsTestPrefix = "metrics:metrics_test"

func TestNew(t *testing.T) {
	m := New()
	if m.Registry == nil {
		t.Fatalf("%s - Registry is nil", metricsTestPrefix)
	}

	m.Inbound("dispatched")
	m.Inbound("dispatched")
	m.Inbound("unknown_tag")
	m.Outbound("sent")

	if got := testutil.ToFloat64(m.InboundCalls.WithLabelValues("dispatched")); got != 2 {
		t.Errorf("%s - inbound dispatched = %v, want 2", metricsTestPrefix, got)
	}
	if got := testutil.ToFloat64(m.InboundCalls.WithLabelValues("unknown_tag")); got != 1 {
		t.Errorf("%s - inbound unknown_tag = %v, want 1", metricsTestPrefix, got)
	}
	if got := testutil.ToFloat64(m.OutboundCalls.WithLabelValues("sent")); got != 1 {
		t.Errorf("%s - outbound sent = %v, want 1", metricsTestPrefix, got)
	}
}

func TestObserveReceiver(t *testing.T) {
	m := New()
	m.ObserveReceiver("camera", 20*time.Millisecond)

	if got := testutil.CollectAndCount(m.ReceiverDuration, "bridge_receiver_duration_seconds"); got != 1 {
		t.Errorf("%s - histogram series = %d, want 1", metricsTestPrefix, got)
	}
}

func TestTrackGauges(t *testing.T) {
	m := New()
	depth, receivers := 3, 2
	m.TrackGauges(func() int { return depth }, func() int { return receivers })

	expected := `
# HELP bridge_loop_queue_depth Tasks waiting on the script-owning loop.
# TYPE bridge_loop_queue_depth gauge
bridge_loop_queue_depth 3
# HELP bridge_registered_receivers Receivers currently registered.
# TYPE bridge_registered_receivers gauge
bridge_registered_receivers 2
`
	err := testutil.GatherAndCompare(m.Registry, strings.NewReader(expected),
		"bridge_loop_queue_depth", "bridge_registered_receivers")
	if err != nil {
		t.Errorf("%s - gauges mismatch: %v", metricsTestPrefix, err)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.Inbound("dispatched")
	m.Outbound("sent")
	m.ObserveReceiver("camera", time.Second)
	m.TrackGauges(func() int { return 0 }, func() int { return 0 })
}
