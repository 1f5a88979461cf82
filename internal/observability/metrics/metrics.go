package metrics

import "github.com/prometheus/client_golang/prometheus"

// RelayMetrics exposes counters/histograms for the webhook relay pipeline.
type RelayMetrics struct {
	inboundTotal    *prometheus.CounterVec
	outboundTotal   *prometheus.CounterVec
	tasksEnqueued   prometheus.Counter
	pipelineLatency prometheus.Histogram
}

func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	m := &RelayMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assistant",
			Subsystem: "relay",
			Name:      "inbound_webhook_total",
			Help:      "Total inbound webhook deliveries by outcome",
		}, []string{"outcome"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assistant",
			Subsystem: "relay",
			Name:      "outbound_total",
			Help:      "Total outbound WhatsApp sends by kind",
		}, []string{"kind"}),
		tasksEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "assistant",
			Subsystem: "relay",
			Name:      "dispatch_tasks_total",
			Help:      "Total dispatch tasks submitted to the queue",
		}),
		pipelineLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "assistant",
			Subsystem: "relay",
			Name:      "pipeline_latency_seconds",
			Help:      "Latency of inbound message pipeline processing",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.outboundTotal, m.tasksEnqueued, m.pipelineLatency)
	return m
}

func (m *RelayMetrics) ObserveInbound(outcome string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(outcome).Inc()
}

func (m *RelayMetrics) ObserveOutbound(kind string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(kind).Inc()
}

func (m *RelayMetrics) ObserveTaskEnqueued() {
	if m == nil {
		return
	}
	m.tasksEnqueued.Inc()
}

func (m *RelayMetrics) ObservePipelineLatency(seconds float64) {
	if m == nil {
		return
	}
	m.pipelineLatency.Observe(seconds)
}
