// Package metrics holds the bridge's Prometheus registry and meters.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus metrics registry and bridge meters. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Registry         *prometheus.Registry
	InboundCalls     *prometheus.CounterVec
	OutboundCalls    *prometheus.CounterVec
	ReceiverDuration *prometheus.HistogramVec
}

// New creates a custom Prometheus registry with the bridge metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	inbound := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_inbound_calls_total",
		Help: "Inbound script-to-native calls by dispatch outcome.",
	}, []string{"outcome"})

	outbound := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_outbound_calls_total",
		Help: "Outbound native-to-script calls by outcome.",
	}, []string{"outcome"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bridge_receiver_duration_seconds",
		Help:    "Time spent in receiver logic.",
		Buckets: prometheus.DefBuckets,
	}, []string{"tag"})

	reg.MustRegister(inbound, outbound, duration)

	return &Metrics{
		Registry:         reg,
		InboundCalls:     inbound,
		OutboundCalls:    outbound,
		ReceiverDuration: duration,
	}
}

// TrackGauges registers gauges sampled from the given functions at scrape time.
func (m *Metrics) TrackGauges(queueDepth, receivers func() int) {
	if m == nil {
		return
	}
	m.Registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "bridge_loop_queue_depth",
			Help: "Tasks waiting on the script-owning loop.",
		}, func() float64 { return float64(queueDepth()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "bridge_registered_receivers",
			Help: "Receivers currently registered.",
		}, func() float64 { return float64(receivers()) }),
	)
}

// Inbound counts one inbound call.
func (m *Metrics) Inbound(outcome string) {
	if m == nil {
		return
	}
	m.InboundCalls.WithLabelValues(outcome).Inc()
}

// Outbound counts one outbound call.
func (m *Metrics) Outbound(outcome string) {
	if m == nil {
		return
	}
	m.OutboundCalls.WithLabelValues(outcome).Inc()
}

// ObserveReceiver records how long a receiver ran.
func (m *Metrics) ObserveReceiver(tag string, d time.Duration) {
	if m == nil {
		return
	}
	m.ReceiverDuration.WithLabelValues(tag).Observe(d.Seconds())
}
