// Package metrics provides Prometheus metrics for the dictation session.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tambourine"

// Metrics holds the session collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Transitions         *prometheus.CounterVec
	Rejected            *prometheus.CounterVec
	CapabilityFailures  *prometheus.CounterVec
	ChannelSendFailures *prometheus.CounterVec
	RecordingDuration   prometheus.Histogram
}

// New creates the session collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_transitions_total",
			Help:      "Committed session state transitions",
		}, []string{"from", "to"}),
		Rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_rejected_total",
			Help:      "Operations rejected by a state or handle guard",
		}, []string{"op"}),
		CapabilityFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capability_failures_total",
			Help:      "Microphone, track or device failures reported by the handle",
		}, []string{"op"}),
		ChannelSendFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_send_failures_total",
			Help:      "Messages the handle failed to send",
		}, []string{"kind"}),
		RecordingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recording_duration_seconds",
			Help:      "Time the microphone stayed enabled per recording",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),
	}
}

func (m *Metrics) ObserveTransition(from string, to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) ObserveRejected(op string) {
	if m == nil {
		return
	}
	m.Rejected.WithLabelValues(op).Inc()
}

func (m *Metrics) ObserveCapabilityFailure(op string) {
	if m == nil {
		return
	}
	m.CapabilityFailures.WithLabelValues(op).Inc()
}

func (m *Metrics) ObserveSendFailure(kind string) {
	if m == nil {
		return
	}
	m.ChannelSendFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveRecording(d time.Duration) {
	if m == nil {
		return
	}
	m.RecordingDuration.Observe(d.Seconds())
}
