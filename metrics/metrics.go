package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	Requests      *prometheus.CounterVec
	LatencyMS     *prometheus.HistogramVec
	WebhookEvents *prometheus.CounterVec
	OrdersCreated prometheus.Counter
	RateLimited   *prometheus.CounterVec
	EmailsSent    *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "furnistore",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"handler", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "furnistore",
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"handler"}),
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "furnistore",
			Name:      "webhook_events_total",
			Help:      "Payment webhook deliveries by outcome.",
		}, []string{"outcome"}),
		OrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "furnistore",
			Name:      "orders_created_total",
			Help:      "Orders created in PENDING status.",
		}),
		RateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "furnistore",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}, []string{"scope"}),
		EmailsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "furnistore",
			Name:      "emails_total",
			Help:      "Outbox email delivery attempts by result.",
		}, []string{"result"}),
		gatherer: reg,
	}
	reg.MustRegister(m.Requests, m.LatencyMS, m.WebhookEvents, m.OrdersCreated, m.RateLimited, m.EmailsSent)
	return m
}

// The helpers below are nil-safe so components can run without metrics.

func (m *Metrics) ObserveRequest(handler, status string, ms float64) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(handler, status).Inc()
	m.LatencyMS.WithLabelValues(handler).Observe(ms)
}

func (m *Metrics) ObserveWebhook(outcome string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveOrderCreated() {
	if m == nil {
		return
	}
	m.OrdersCreated.Inc()
}

func (m *Metrics) ObserveRateLimited(scope string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(scope).Inc()
}

func (m *Metrics) ObserveEmail(result string) {
	if m == nil {
		return
	}
	m.EmailsSent.WithLabelValues(result).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
