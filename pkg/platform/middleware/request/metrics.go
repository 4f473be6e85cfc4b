package request

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds HTTP-level Prometheus collectors shared by the latency middleware.
type Metrics struct {
	EndpointLatency *prometheus.HistogramVec
}

// NewMetrics creates and registers the HTTP request collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		EndpointLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "verigate_http_request_duration_seconds",
			Help:    "HTTP request latency by path and status code",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "status"}),
	}
}

// Latency records per-endpoint request latency.
func Latency(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			m.EndpointLatency.WithLabelValues(
				r.URL.Path,
				strconv.Itoa(wrapped.statusCode),
			).Observe(time.Since(start).Seconds())
		})
	}
}
