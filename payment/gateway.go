// Package payment adapts hosted checkout providers: it creates checkout
// sessions and turns signed webhook deliveries into provider-neutral events.
package payment

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidSignature = errors.New("payment: invalid webhook signature")
	ErrMalformedEvent   = errors.New("payment: malformed webhook event")
)

type LineItem struct {
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

type CheckoutRequest struct {
	OrderID       string
	Currency      string
	CustomerEmail string
	Items         []LineItem
	SuccessURL    string
	CancelURL     string
}

type Session struct {
	ID  string
	URL string
}

// Event is a verified webhook delivery. Paid is set for events that confirm
// the checkout was paid; other event types are recorded but change nothing.
type Event struct {
	ID        string
	Provider  string
	Type      string
	OrderID   string
	SessionID string
	Paid      bool
	CreatedAt time.Time
}

type Gateway interface {
	Name() string
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (Session, error)
	ParseWebhook(payload []byte, header http.Header) (Event, error)
}

// MinorUnits converts an amount to the provider's smallest currency unit.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
