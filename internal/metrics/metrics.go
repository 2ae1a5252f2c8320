// Package metrics defines the Prometheus metrics exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Webhook metrics
	WebhookBatchesTotal   *prometheus.CounterVec
	WebhookEventsTotal    *prometheus.CounterVec
	WebhookEventDuration  *prometheus.HistogramVec
	WebhookBatchEventSize prometheus.Histogram

	// LINE API metrics
	LineAPIRequestsTotal *prometheus.CounterVec
	LineAPIDuration      *prometheus.HistogramVec

	// Login metrics
	LoginCallbacksTotal *prometheus.CounterVec
	Bindings            prometheus.Gauge
}

// New creates a new Metrics instance with all metrics registered
func New(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		WebhookBatchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linebridge_webhook_batches_total",
				Help: "Total number of webhook deliveries by outcome",
			},
			[]string{"status"}, // status: accepted, invalid_signature, decode_error
		),

		WebhookEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linebridge_webhook_events_total",
				Help: "Total number of webhook events by source type, event type and status",
			},
			[]string{"source_type", "event_type", "status"}, // status: success, error, ignored
		),

		WebhookEventDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "linebridge_webhook_event_duration_seconds",
				Help:    "Time spent dispatching a single webhook event",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"event_type"},
		),

		WebhookBatchEventSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "linebridge_webhook_batch_events",
				Help:    "Number of events per webhook delivery",
				Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
			},
		),

		LineAPIRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linebridge_line_api_requests_total",
				Help: "Total LINE API calls by operation and status",
			},
			[]string{"operation", "status"}, // status: success, error, not_found, stale_token, timeout
		),

		LineAPIDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "linebridge_line_api_duration_seconds",
				Help:    "LINE API call duration in seconds by operation",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}, // Matches the 10s client timeout
			},
			[]string{"operation"}, // operation: reply, push, get_profile, token, verify
		),

		LoginCallbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linebridge_login_callbacks_total",
				Help: "Total LINE Login callbacks by result",
			},
			[]string{"result"}, // result: success, denied, invalid_request, exchange_error, verify_error, store_error
		),

		Bindings: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "linebridge_bindings",
				Help: "Number of stored account bindings",
			},
		),
	}
}

// RecordWebhookBatch records a delivery outcome and its event count
func (m *Metrics) RecordWebhookBatch(status string, events int) {
	m.WebhookBatchesTotal.WithLabelValues(status).Inc()
	m.WebhookBatchEventSize.Observe(float64(events))
}

// RecordEvent records a dispatched webhook event
func (m *Metrics) RecordEvent(sourceType, eventType, status string, duration float64) {
	m.WebhookEventsTotal.WithLabelValues(sourceType, eventType, status).Inc()
	m.WebhookEventDuration.WithLabelValues(eventType).Observe(duration)
}

// RecordLineAPI records an outbound LINE API call
func (m *Metrics) RecordLineAPI(operation, status string, duration float64) {
	m.LineAPIRequestsTotal.WithLabelValues(operation, status).Inc()
	m.LineAPIDuration.WithLabelValues(operation).Observe(duration)
}

// RecordLoginCallback records a login callback result
func (m *Metrics) RecordLoginCallback(result string) {
	m.LoginCallbacksTotal.WithLabelValues(result).Inc()
}

// SetBindings sets the stored bindings gauge
func (m *Metrics) SetBindings(count int) {
	m.Bindings.Set(float64(count))
}
