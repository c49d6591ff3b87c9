// Package notify renders customer notifications and delivers outbox messages
// through the configured transport.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"furnistore/i18n"
	"furnistore/logging"
	"furnistore/metrics"
	"furnistore/models"
)

type Sender interface {
	Send(ctx context.Context, msg models.OutboxMessage) error
}

type OutboxStore interface {
	Pending(ctx context.Context, limit int) ([]models.OutboxMessage, error)
	MarkSent(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, reason string) error
}

type confirmationItem struct {
	Name      string
	Quantity  int
	UnitPrice string
}

type confirmationData struct {
	OrderID  string
	Name     string
	Total    string
	Currency string
	Items    []confirmationItem
	Address  string
	City     string
	Zip      string
	Country  string
}

// OrderConfirmation renders the confirmation email for a paid order in the
// order's locale and wraps it as a pending outbox message.
func OrderConfirmation(bundle *i18n.Bundle, order models.Order, now time.Time) (models.OutboxMessage, error) {
	lang := order.Locale
	if lang == "" {
		lang = i18n.DefaultLang
	}
	data := confirmationData{
		OrderID:  order.ID.Hex(),
		Name:     order.Shipping.Name,
		Total:    order.TotalAmount.StringFixed(2),
		Currency: order.Currency,
		Address:  order.Shipping.Address,
		City:     order.Shipping.City,
		Zip:      order.Shipping.Zip,
		Country:  order.Shipping.Country,
	}
	for _, it := range order.Items {
		data.Items = append(data.Items, confirmationItem{Name: it.Name, Quantity: it.Quantity, UnitPrice: it.UnitPrice.StringFixed(2)})
	}

	subject, err := bundle.Render(lang, "email.order_confirmation.subject", data)
	if err != nil {
		return models.OutboxMessage{}, err
	}
	body, err := bundle.Render(lang, "email.order_confirmation.body", data)
	if err != nil {
		return models.OutboxMessage{}, err
	}

	return models.OutboxMessage{
		ID:        uuid.NewString(),
		Kind:      models.OutboxOrderConfirmation,
		OrderID:   order.ID.Hex(),
		To:        order.Shipping.Email,
		Subject:   subject,
		Body:      body,
		Locale:    lang,
		Status:    models.OutboxPending,
		CreatedAt: now,
	}, nil
}

type Dispatcher struct {
	store   OutboxStore
	sender  Sender
	metrics *metrics.Metrics
	log     *slog.Logger
	now     func() time.Time
}

func NewDispatcher(store OutboxStore, sender Sender, m *metrics.Metrics, log *slog.Logger) *Dispatcher {
	return &Dispatcher{store: store, sender: sender, metrics: m, log: log, now: time.Now}
}

// Deliver sends one message and records the attempt. A send failure leaves
// the message pending for a later relay.
func (d *Dispatcher) Deliver(ctx context.Context, msg models.OutboxMessage) error {
	log := d.log.With(logging.Fields{OrderID: msg.OrderID, Step: "notify"}.Attrs()...)

	if err := d.sender.Send(ctx, msg); err != nil {
		d.metrics.ObserveEmail("failed")
		log.Warn("notification send failed", "outbox_id", msg.ID, "error", err)
		if markErr := d.store.MarkFailed(ctx, msg.ID, err.Error()); markErr != nil {
			log.Error("outbox mark failed", "outbox_id", msg.ID, "error", markErr)
		}
		return fmt.Errorf("send %s: %w", msg.ID, err)
	}

	d.metrics.ObserveEmail("sent")
	if err := d.store.MarkSent(ctx, msg.ID, d.now()); err != nil {
		log.Error("outbox mark sent", "outbox_id", msg.ID, "error", err)
		return err
	}
	log.Info("notification sent", "outbox_id", msg.ID, "to", msg.To)
	return nil
}

type RelayResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// RelayPending retries up to limit pending messages, oldest first.
func (d *Dispatcher) RelayPending(ctx context.Context, limit int) (RelayResult, error) {
	var res RelayResult
	msgs, err := d.store.Pending(ctx, limit)
	if err != nil {
		return res, err
	}
	for _, msg := range msgs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := d.Deliver(ctx, msg); err != nil {
			res.Failed++
			continue
		}
		res.Sent++
	}
	return res, nil
}
