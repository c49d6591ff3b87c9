package payment

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

const testWebhookSecret = "whsec_test_secret"

func signedStripeHeader(t *testing.T, payload []byte, secret string) http.Header {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})
	h := http.Header{}
	h.Set(StripeSignatureHeader, signed.Header)
	return h
}

func TestStripeParseCompletedSession(t *testing.T) {
	s := NewStripe("sk_test", testWebhookSecret, nil)
	payload := []byte(`{
		"id": "evt_1",
		"object": "event",
		"type": "checkout.session.completed",
		"api_version": "2023-10-16",
		"created": 1700000000,
		"data": {"object": {
			"id": "cs_test_1",
			"object": "checkout.session",
			"payment_status": "paid",
			"client_reference_id": "65f0c0ffee0000000000aaaa",
			"metadata": {"orderId": "65f0c0ffee0000000000bbbb"}
		}}
	}`)

	evt, err := s.ParseWebhook(payload, signedStripeHeader(t, payload, testWebhookSecret))
	require.NoError(t, err)

	assert.Equal(t, "evt_1", evt.ID)
	assert.Equal(t, "stripe", evt.Provider)
	assert.Equal(t, "checkout.session.completed", evt.Type)
	assert.Equal(t, "cs_test_1", evt.SessionID)
	assert.Equal(t, "65f0c0ffee0000000000bbbb", evt.OrderID, "metadata wins over client_reference_id")
	assert.True(t, evt.Paid)
	assert.Equal(t, int64(1700000000), evt.CreatedAt.Unix())
}

func TestStripeUnpaidSessionIsNotPaid(t *testing.T) {
	s := NewStripe("sk_test", testWebhookSecret, nil)
	payload := []byte(`{"id":"evt_2","object":"event","type":"checkout.session.completed","created":1,
		"data":{"object":{"id":"cs_2","object":"checkout.session","payment_status":"unpaid","client_reference_id":"abc"}}}`)

	evt, err := s.ParseWebhook(payload, signedStripeHeader(t, payload, testWebhookSecret))
	require.NoError(t, err)
	assert.False(t, evt.Paid)
	assert.Equal(t, "abc", evt.OrderID)
}

func TestStripeOtherEventTypes(t *testing.T) {
	s := NewStripe("sk_test", testWebhookSecret, nil)
	payload := []byte(`{"id":"evt_3","object":"event","type":"charge.refunded","created":1,"data":{"object":{"id":"ch_1","object":"charge"}}}`)

	evt, err := s.ParseWebhook(payload, signedStripeHeader(t, payload, testWebhookSecret))
	require.NoError(t, err)
	assert.Equal(t, "evt_3", evt.ID)
	assert.False(t, evt.Paid)
	assert.Empty(t, evt.OrderID)
}

func TestStripeRejectsBadSignature(t *testing.T) {
	s := NewStripe("sk_test", testWebhookSecret, nil)
	payload := []byte(`{"id":"evt_1","object":"event","type":"checkout.session.completed","created":1,"data":{"object":{}}}`)

	_, err := s.ParseWebhook(payload, signedStripeHeader(t, payload, "whsec_other"))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = s.ParseWebhook(payload, http.Header{})
	assert.ErrorIs(t, err, ErrInvalidSignature)

	h := signedStripeHeader(t, payload, testWebhookSecret)
	tampered := []byte(`{"id":"evt_9","object":"event","type":"checkout.session.completed","created":1,"data":{"object":{}}}`)
	_, err = s.ParseWebhook(tampered, h)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestStripeCreateCheckoutSession(t *testing.T) {
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		form, _ = url.ParseQuery(string(body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_42","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_test_42"}`))
	}))
	defer srv.Close()

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:           stripe.String(srv.URL),
		LeveledLogger: &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	s := NewStripe("sk_test", testWebhookSecret, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})

	sess, err := s.CreateCheckoutSession(context.Background(), CheckoutRequest{
		OrderID:       "order-1",
		Currency:      "USD",
		CustomerEmail: "ana@example.com",
		Items:         []LineItem{{Name: "Oak Table", UnitPrice: decimal.RequireFromString("50.00"), Quantity: 2}},
		SuccessURL:    "https://shop.example.com/checkout/success?orderId=order-1",
		CancelURL:     "https://shop.example.com/cart",
	})
	require.NoError(t, err)
	assert.Equal(t, Session{ID: "cs_test_42", URL: "https://checkout.stripe.com/c/pay/cs_test_42"}, sess)

	assert.Equal(t, "payment", form.Get("mode"))
	assert.Equal(t, "order-1", form.Get("client_reference_id"))
	assert.Equal(t, "order-1", form.Get("metadata[orderId]"))
	assert.Equal(t, "5000", form.Get("line_items[0][price_data][unit_amount]"))
	assert.Equal(t, "usd", form.Get("line_items[0][price_data][currency]"))
	assert.Equal(t, "2", form.Get("line_items[0][quantity]"))
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(5000), MinorUnits(decimal.RequireFromString("50")))
	assert.Equal(t, int64(1999), MinorUnits(decimal.RequireFromString("19.99")))
	assert.Equal(t, int64(1), MinorUnits(decimal.RequireFromString("0.005")))
}
