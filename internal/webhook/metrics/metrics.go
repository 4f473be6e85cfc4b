package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for webhook delivery.
type Metrics struct {
	Deliveries       *prometheus.CounterVec
	Retries          prometheus.Counter
	Dropped          *prometheus.CounterVec
	DeliveryDuration prometheus.Histogram
}

// New creates and registers the webhook collectors.
func New() *Metrics {
	return &Metrics{
		Deliveries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verigate_webhook_deliveries_total",
			Help: "Webhook delivery attempts that got a definitive outcome, by event and outcome",
		}, []string{"event", "outcome"}),
		Retries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "verigate_webhook_retries_total",
			Help: "Webhook delivery attempts that failed and were scheduled for retry",
		}),
		Dropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verigate_webhook_dropped_total",
			Help: "Webhook events dropped after exhausting all retry attempts, by event",
		}, []string{"event"}),
		DeliveryDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "verigate_webhook_delivery_seconds",
			Help:    "Wall-clock duration of a single webhook POST",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// ObserveDelivery records one POST duration.
func (m *Metrics) ObserveDelivery(d time.Duration) {
	m.DeliveryDuration.Observe(d.Seconds())
}
