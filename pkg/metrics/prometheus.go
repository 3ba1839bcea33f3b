package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	ticksAccepted    *prometheus.CounterVec
	ticksRejected    *prometheus.CounterVec
	lastPrice        *prometheus.GaugeVec
	alertsFired      *prometheus.CounterVec
	droppedMessages  *prometheus.CounterVec
	connectedClients prometheus.Gauge
	feedConnected    prometheus.Gauge
	latency          *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		ticksAccepted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxpulse_ticks_accepted_total",
				Help: "Total number of ticks accepted by the normalizer",
			},
			[]string{"symbol"},
		),
		ticksRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxpulse_ticks_rejected_total",
				Help: "Total number of ticks discarded by the normalizer",
			},
			[]string{"reason"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fxpulse_last_price",
				Help: "Last accepted mid price for a symbol",
			},
			[]string{"symbol"},
		),
		alertsFired: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxpulse_alerts_fired_total",
				Help: "Total number of alerts fired",
			},
			[]string{"condition"},
		),
		droppedMessages: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxpulse_dropped_messages_total",
				Help: "Total number of outbound messages dropped or clients cut off",
			},
			[]string{"kind"},
		),
		connectedClients: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "fxpulse_connected_clients",
				Help: "Current number of connected websocket clients",
			},
		),
		feedConnected: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "fxpulse_feed_connected",
				Help: "Whether the upstream feed is connected (1) or not (0)",
			},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fxpulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordTickAccepted records one accepted tick.
func (r *Recorder) RecordTickAccepted(symbol string) {
	r.ticksAccepted.WithLabelValues(symbol).Inc()
}

// RecordTickRejected records one discarded tick and why.
func (r *Recorder) RecordTickRejected(reason string) {
	r.ticksRejected.WithLabelValues(reason).Inc()
}

// RecordLastPrice records the last accepted mid price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordAlertFired records a fired alert by condition.
func (r *Recorder) RecordAlertFired(condition string) {
	r.alertsFired.WithLabelValues(condition).Inc()
}

// RecordDroppedMessage records a dropped outbound message.
func (r *Recorder) RecordDroppedMessage(kind string) {
	r.droppedMessages.WithLabelValues(kind).Inc()
}

// SetConnectedClients records the current client count.
func (r *Recorder) SetConnectedClients(n int) {
	r.connectedClients.Set(float64(n))
}

// SetFeedConnected records the upstream connection state.
func (r *Recorder) SetFeedConnected(connected bool) {
	if connected {
		r.feedConnected.Set(1)
	} else {
		r.feedConnected.Set(0)
	}
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
