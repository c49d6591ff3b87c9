package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersAndHandler(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveWebhook("processed")
	m.ObserveWebhook("processed")
	m.ObserveWebhook("duplicate")
	m.ObserveOrderCreated()
	m.ObserveRequest("/api/user/checkout", "200", 12)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.WebhookEvents.WithLabelValues("processed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WebhookEvents.WithLabelValues("duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrdersCreated))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "furnistore_webhook_events_total")
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveWebhook("processed")
		m.ObserveOrderCreated()
		m.ObserveRateLimited("checkout")
		m.ObserveEmail("sent")
		m.ObserveRequest("h", "200", 1)
	})
}
