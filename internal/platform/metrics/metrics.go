package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry returns a registry preloaded with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler exposes reg in the Prometheus text format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Lifecycle holds the membership lifecycle metrics. A nil *Lifecycle is a no-op.
type Lifecycle struct {
	operations       *prometheus.CounterVec
	referenceRetries *prometheus.CounterVec
	pendingReviews   *prometheus.GaugeVec
	httpDuration     *prometheus.HistogramVec
}

func NewLifecycle(reg prometheus.Registerer) *Lifecycle {
	f := promauto.With(reg)
	return &Lifecycle{
		operations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "membership",
			Name:      "operations_total",
			Help:      "Lifecycle operations by name and outcome.",
		}, []string{"operation", "outcome"}),
		referenceRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "membership",
			Name:      "reference_allocation_retries_total",
			Help:      "Reference allocation attempts that collided and were retried.",
		}, []string{"family"}),
		pendingReviews: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "membership",
			Name:      "pending_reviews",
			Help:      "Items waiting for operator review, as of the last listing.",
		}, []string{"queue"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "membership",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// ObserveOperation counts one lifecycle operation. outcome is "ok" or an error code.
func (m *Lifecycle) ObserveOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
}

func (m *Lifecycle) ObserveReferenceRetry(family string) {
	if m == nil {
		return
	}
	m.referenceRetries.WithLabelValues(family).Inc()
}

func (m *Lifecycle) SetPending(queue string, n int) {
	if m == nil {
		return
	}
	m.pendingReviews.WithLabelValues(queue).Set(float64(n))
}

func (m *Lifecycle) ObserveHTTP(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
}
