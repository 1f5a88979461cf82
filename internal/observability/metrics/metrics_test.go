package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRelayMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRelayMetrics(reg)
	m.ObserveInbound("processed")
	m.ObserveOutbound("apology")
	m.ObserveTaskEnqueued()
	m.ObservePipelineLatency(0.5)
}

func TestRelayMetricsNilSafe(t *testing.T) {
	var m *RelayMetrics
	m.ObserveInbound("processed")
	m.ObserveOutbound("ack")
	m.ObserveTaskEnqueued()
	m.ObservePipelineLatency(0.1)
}
