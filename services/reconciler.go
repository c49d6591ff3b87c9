package services

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"furnistore/apperr"
	"furnistore/database"
	"furnistore/i18n"
	"furnistore/logging"
	"furnistore/metrics"
	"furnistore/models"
	"furnistore/notify"
	"furnistore/payment"
)

type Outcome string

const (
	// OutcomeProcessed: the event moved an order to PAID.
	OutcomeProcessed Outcome = "processed"
	// OutcomeIgnored: the event was recorded but changed no order.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeDuplicate: the event id had already been recorded.
	OutcomeDuplicate Outcome = "duplicate"
)

type Deliverer interface {
	Deliver(ctx context.Context, msg models.OutboxMessage) error
}

type Reconciler struct {
	tx       Transactor
	orders   OrderStore
	carts    CartStore
	products ProductStore
	events   WebhookEventStore
	outbox   OutboxStore
	gateway  payment.Gateway
	mailer   Deliverer
	bundle   *i18n.Bundle
	metrics  *metrics.Metrics
	log      *slog.Logger
	now      func() time.Time
}

type ReconcilerDeps struct {
	Tx       Transactor
	Orders   OrderStore
	Carts    CartStore
	Products ProductStore
	Events   WebhookEventStore
	Outbox   OutboxStore
	Gateway  payment.Gateway
	Mailer   Deliverer
	Bundle   *i18n.Bundle
	Metrics  *metrics.Metrics
	Log      *slog.Logger
}

func NewReconciler(d ReconcilerDeps) *Reconciler {
	return &Reconciler{
		tx:       d.Tx,
		orders:   d.Orders,
		carts:    d.Carts,
		products: d.Products,
		events:   d.Events,
		outbox:   d.Outbox,
		gateway:  d.Gateway,
		mailer:   d.Mailer,
		bundle:   d.Bundle,
		metrics:  d.Metrics,
		log:      d.Log,
		now:      time.Now,
	}
}

// Handle verifies and applies one webhook delivery. Every state change of a
// delivery commits together with the event record, so a replayed or
// concurrently delivered event id applies at most once.
func (r *Reconciler) Handle(ctx context.Context, payload []byte, header http.Header) (Outcome, error) {
	evt, err := r.gateway.ParseWebhook(payload, header)
	if err != nil {
		r.metrics.ObserveWebhook("invalid_signature")
		r.log.Warn("webhook rejected", "provider", r.gateway.Name(), "error", err)
		return "", apperr.InvalidSignature(err)
	}

	log := r.log.With(logging.Fields{EventID: evt.ID, OrderID: evt.OrderID, Step: "webhook"}.Attrs()...)
	log = log.With("event_type", evt.Type, "session_id", evt.SessionID)

	seen, err := r.events.Exists(ctx, evt.ID)
	if err != nil {
		r.metrics.ObserveWebhook("error")
		return "", err
	}
	if seen {
		r.metrics.ObserveWebhook(string(OutcomeDuplicate))
		log.Info("webhook already processed")
		return OutcomeDuplicate, nil
	}

	var (
		outcome Outcome
		mail    *models.OutboxMessage
	)
	err = r.tx.Transact(ctx, func(ctx context.Context) error {
		outcome, mail = OutcomeIgnored, nil
		if evt.Paid {
			msg, err := r.applyPayment(ctx, evt, log)
			if err != nil {
				return err
			}
			if msg != nil {
				outcome, mail = OutcomeProcessed, msg
			}
		}
		return r.events.Insert(ctx, models.WebhookEvent{
			ID:        evt.ID,
			Provider:  evt.Provider,
			Type:      evt.Type,
			OrderID:   evt.OrderID,
			CreatedAt: r.now(),
		})
	})
	if errors.Is(err, database.ErrDuplicateKey) {
		r.metrics.ObserveWebhook(string(OutcomeDuplicate))
		log.Info("webhook processed concurrently")
		return OutcomeDuplicate, nil
	}
	if err != nil {
		r.metrics.ObserveWebhook("error")
		log.Error("webhook processing failed", "error", err)
		return "", err
	}

	r.metrics.ObserveWebhook(string(outcome))
	log.Info("webhook processed", "outcome", outcome)

	if mail != nil && r.mailer != nil {
		if err := r.mailer.Deliver(ctx, *mail); err != nil {
			log.Warn("confirmation email left in outbox", "outbox_id", mail.ID, "error", err)
		}
	}
	return outcome, nil
}

func (r *Reconciler) resolveOrder(ctx context.Context, evt payment.Event) (models.Order, error) {
	if id, err := primitive.ObjectIDFromHex(evt.OrderID); err == nil {
		order, err := r.orders.Get(ctx, id)
		if !errors.Is(err, database.ErrNotFound) || evt.SessionID == "" {
			return order, err
		}
	}
	if evt.SessionID == "" {
		return models.Order{}, database.ErrNotFound
	}
	return r.orders.FindBySession(ctx, evt.SessionID)
}

// applyPayment marks the referenced order PAID and runs the side effects of
// payment. It returns the queued confirmation, or nil when nothing changed.
func (r *Reconciler) applyPayment(ctx context.Context, evt payment.Event, log *slog.Logger) (*models.OutboxMessage, error) {
	order, err := r.resolveOrder(ctx, evt)
	if errors.Is(err, database.ErrNotFound) {
		log.Warn("payment event for unknown order")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if order.PaymentSessionID == "" || order.PaymentSessionID != evt.SessionID {
		log.Warn("payment session does not match order", "order_session_id", order.PaymentSessionID)
		return nil, nil
	}

	now := r.now()
	changed, err := r.orders.MarkPaid(ctx, order.ID, now)
	if err != nil {
		return nil, err
	}
	if !changed {
		log.Warn("order not pending, payment ignored", "status", order.Status)
		return nil, nil
	}
	order.Status = models.OrderPaid
	order.PaidAt = &now

	if err := r.carts.Clear(ctx, order.UserID); err != nil {
		return nil, err
	}
	for _, it := range order.Items {
		ok, err := r.products.DecrementStock(ctx, it.ProductID, it.Quantity)
		if err != nil {
			return nil, err
		}
		if !ok {
			log.Warn("stock oversold", "product_id", it.ProductID.Hex(), "quantity", it.Quantity)
		}
	}

	msg, err := notify.OrderConfirmation(r.bundle, order, now)
	if err != nil {
		return nil, err
	}
	if err := r.outbox.Enqueue(ctx, msg); err != nil {
		return nil, err
	}
	log.Info("order paid", "user_id", order.UserID.Hex(), "total", order.TotalAmount.StringFixed(2))
	return &msg, nil
}
