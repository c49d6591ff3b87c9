package testutil

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"furnistore/models"
	"furnistore/payment"
)

const SignatureHeader = "X-Test-Signature"

// Gateway is a payment.Gateway that signs webhooks with HMAC-SHA256 over the
// raw body, the way hosted providers do.
type Gateway struct {
	Secret string
	// CreateErr, when set, fails every checkout session request.
	CreateErr error

	mu       sync.Mutex
	Requests []payment.CheckoutRequest
	next     int
}

func NewGateway(secret string) *Gateway {
	return &Gateway{Secret: secret}
}

func (g *Gateway) Name() string { return "fake" }

func (g *Gateway) CreateCheckoutSession(_ context.Context, req payment.CheckoutRequest) (payment.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Requests = append(g.Requests, req)
	if g.CreateErr != nil {
		return payment.Session{}, g.CreateErr
	}
	g.next++
	id := fmt.Sprintf("sess_%d", g.next)
	return payment.Session{ID: id, URL: "https://pay.example.com/" + id}, nil
}

// WebhookBody is the JSON shape ParseWebhook accepts.
type WebhookBody struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	OrderID   string `json:"orderId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Paid      bool   `json:"paid"`
}

func (g *Gateway) ParseWebhook(payload []byte, header http.Header) (payment.Event, error) {
	want := g.sign(payload)
	got := header.Get(SignatureHeader)
	if got == "" || !hmac.Equal([]byte(got), []byte(want)) {
		return payment.Event{}, payment.ErrInvalidSignature
	}
	var body WebhookBody
	if err := json.Unmarshal(payload, &body); err != nil || body.ID == "" {
		return payment.Event{}, payment.ErrMalformedEvent
	}
	return payment.Event{
		ID:        body.ID,
		Provider:  g.Name(),
		Type:      body.Type,
		OrderID:   body.OrderID,
		SessionID: body.SessionID,
		Paid:      body.Paid,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (g *Gateway) sign(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(g.Secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Webhook builds a signed delivery for body.
func (g *Gateway) Webhook(body WebhookBody) ([]byte, http.Header) {
	payload, _ := json.Marshal(body)
	h := http.Header{}
	h.Set(SignatureHeader, g.sign(payload))
	return payload, h
}

// PaidWebhook builds a signed payment-success delivery for order.
func (g *Gateway) PaidWebhook(eventID string, order models.Order) ([]byte, http.Header) {
	return g.Webhook(WebhookBody{
		ID:        eventID,
		Type:      "checkout.session.completed",
		OrderID:   order.ID.Hex(),
		SessionID: order.PaymentSessionID,
		Paid:      true,
	})
}

// Mailer records deliveries. Err, when set, fails every delivery.
type Mailer struct {
	Err error

	mu        sync.Mutex
	Delivered []models.OutboxMessage
}

func (m *Mailer) Deliver(_ context.Context, msg models.OutboxMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Delivered = append(m.Delivered, msg)
	return nil
}

func (m *Mailer) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Delivered)
}
