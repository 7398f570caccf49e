// Package metrics provides a Prometheus-backed implementation of the broker's
// Recorder interface.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/agentwire/agentwire/core"
)

// PrometheusRecorder implements core.Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	sentTotal        *prometheus.CounterVec
	deliveredTotal   *prometheus.CounterVec
	failedTotal      *prometheus.CounterVec
	deliveryDuration *prometheus.HistogramVec
	retryBacklog     *prometheus.GaugeVec
}

// NewPrometheusRecorder registers the broker metric families with reg and
// returns the recorder. Pass prometheus.DefaultRegisterer for the process
// default, or a fresh registry in tests.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		sentTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "broker_messages_sent_total",
				Help: "Total number of messages accepted for delivery by routing strategy",
			},
			[]string{"strategy"},
		),
		deliveredTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "broker_messages_delivered_total",
				Help: "Total number of messages handed off to an agent",
			},
			[]string{"agent_id"},
		),
		failedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "broker_messages_failed_total",
				Help: "Total number of routing and delivery failures by reason",
			},
			[]string{"reason"},
		),
		deliveryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "broker_delivery_duration_seconds",
				Help:    "Time from message creation to successful agent hand-off",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"agent_id"},
		),
		retryBacklog: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "broker_retry_backlog",
				Help: "Messages currently queued for redelivery per agent",
			},
			[]string{"agent_id"},
		),
	}
}

// IncSent implements core.Recorder.
func (p *PrometheusRecorder) IncSent(strategy core.RoutingStrategy) {
	p.sentTotal.WithLabelValues(string(strategy)).Inc()
}

// IncDelivered implements core.Recorder.
func (p *PrometheusRecorder) IncDelivered(agentID string, latency time.Duration) {
	p.deliveredTotal.WithLabelValues(agentID).Inc()
	p.deliveryDuration.WithLabelValues(agentID).Observe(latency.Seconds())
}

// IncFailed implements core.Recorder.
func (p *PrometheusRecorder) IncFailed(reason string) {
	p.failedTotal.WithLabelValues(reason).Inc()
}

// SetRetryBacklog implements core.Recorder.
func (p *PrometheusRecorder) SetRetryBacklog(agentID string, depth int) {
	p.retryBacklog.WithLabelValues(agentID).Set(float64(depth))
}
