package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
)

const (
	RazorpaySignatureHeader = "X-Razorpay-Signature"
	RazorpayEventIDHeader   = "X-Razorpay-Event-Id"
)

type paymentLinkCreator interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// Razorpay uses hosted payment links as the checkout page.
type Razorpay struct {
	links         paymentLinkCreator
	webhookSecret string
}

func NewRazorpay(keyID, keySecret, webhookSecret string) *Razorpay {
	c := razorpay.NewClient(keyID, keySecret)
	return &Razorpay{links: c.PaymentLink, webhookSecret: webhookSecret}
}

func (r *Razorpay) Name() string { return "razorpay" }

func (r *Razorpay) CreateCheckoutSession(_ context.Context, req CheckoutRequest) (Session, error) {
	var total int64
	var lines []string
	for _, it := range req.Items {
		total += MinorUnits(it.UnitPrice) * int64(it.Quantity)
		lines = append(lines, fmt.Sprintf("%s x%d", it.Name, it.Quantity))
	}

	data := map[string]interface{}{
		"amount":          total,
		"currency":        strings.ToUpper(req.Currency),
		"reference_id":    req.OrderID,
		"description":     truncate(strings.Join(lines, ", "), 2048),
		"callback_url":    req.SuccessURL,
		"callback_method": "get",
		"notes":           map[string]interface{}{"orderId": req.OrderID},
	}
	if req.CustomerEmail != "" {
		data["customer"] = map[string]interface{}{"email": req.CustomerEmail}
	}

	resp, err := r.links.Create(data, nil)
	if err != nil {
		return Session{}, fmt.Errorf("razorpay payment link: %w", err)
	}
	id, _ := resp["id"].(string)
	url, _ := resp["short_url"].(string)
	if id == "" || url == "" {
		return Session{}, fmt.Errorf("razorpay payment link: unexpected response %v", resp)
	}
	return Session{ID: id, URL: url}, nil
}

type razorpayWebhook struct {
	Event     string `json:"event"`
	CreatedAt int64  `json:"created_at"`
	Payload   struct {
		PaymentLink *struct {
			Entity struct {
				ID          string          `json:"id"`
				ReferenceID string          `json:"reference_id"`
				Status      string          `json:"status"`
				Notes       json.RawMessage `json:"notes"`
			} `json:"entity"`
		} `json:"payment_link"`
	} `json:"payload"`
}

func (r *Razorpay) ParseWebhook(payload []byte, header http.Header) (Event, error) {
	sig := header.Get(RazorpaySignatureHeader)
	if sig == "" || !utils.VerifyWebhookSignature(string(payload), sig, r.webhookSecret) {
		return Event{}, ErrInvalidSignature
	}

	eventID := header.Get(RazorpayEventIDHeader)
	if eventID == "" {
		return Event{}, fmt.Errorf("%w: missing %s", ErrMalformedEvent, RazorpayEventIDHeader)
	}

	var body razorpayWebhook
	if err := json.Unmarshal(payload, &body); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	out := Event{
		ID:        eventID,
		Provider:  r.Name(),
		Type:      body.Event,
		CreatedAt: time.Unix(body.CreatedAt, 0).UTC(),
	}
	if body.Event == "payment_link.paid" && body.Payload.PaymentLink != nil {
		link := body.Payload.PaymentLink.Entity
		out.SessionID = link.ID
		out.OrderID = noteValue(link.Notes, "orderId")
		if out.OrderID == "" {
			out.OrderID = link.ReferenceID
		}
		out.Paid = link.Status == "paid"
	}
	return out, nil
}

// noteValue reads a key from Razorpay notes, which arrive as an object or, when
// empty, as an array.
func noteValue(raw json.RawMessage, key string) string {
	var notes map[string]interface{}
	if err := json.Unmarshal(raw, &notes); err != nil {
		return ""
	}
	v, _ := notes[key].(string)
	return v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
