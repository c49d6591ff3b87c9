package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

const StripeSignatureHeader = "Stripe-Signature"

type Stripe struct {
	api           *client.API
	webhookSecret string
}

// NewStripe builds the adapter. backends may be nil to talk to the live API.
func NewStripe(secretKey, webhookSecret string, backends *stripe.Backends) *Stripe {
	api := &client.API{}
	api.Init(secretKey, backends)
	return &Stripe{api: api, webhookSecret: webhookSecret}
}

func (s *Stripe) Name() string { return "stripe" }

func (s *Stripe) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.OrderID),
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	for _, it := range req.Items {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(int64(it.Quantity)),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(req.Currency)),
				UnitAmount: stripe.Int64(MinorUnits(it.UnitPrice)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(it.Name),
				},
			},
		})
	}
	params.AddMetadata("orderId", req.OrderID)
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return Session{}, fmt.Errorf("stripe checkout session: %w", err)
	}
	return Session{ID: sess.ID, URL: sess.URL}, nil
}

func (s *Stripe) ParseWebhook(payload []byte, header http.Header) (Event, error) {
	evt, err := webhook.ConstructEventWithOptions(payload, header.Get(StripeSignatureHeader), s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		if isStripeSignatureError(err) {
			return Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if evt.ID == "" {
		return Event{}, ErrMalformedEvent
	}

	out := Event{
		ID:        evt.ID,
		Provider:  s.Name(),
		Type:      string(evt.Type),
		CreatedAt: time.Unix(evt.Created, 0).UTC(),
	}

	switch out.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		if evt.Data == nil {
			return Event{}, ErrMalformedEvent
		}
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &cs); err != nil {
			return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		out.SessionID = cs.ID
		out.OrderID = cs.Metadata["orderId"]
		if out.OrderID == "" {
			out.OrderID = cs.ClientReferenceID
		}
		out.Paid = cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid ||
			cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusNoPaymentRequired
	}
	return out, nil
}

func isStripeSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}
