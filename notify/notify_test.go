package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"furnistore/config"
	"furnistore/i18n"
	"furnistore/logging"
	"furnistore/metrics"
	"furnistore/models"
)

type memOutbox struct {
	msgs   []models.OutboxMessage
	sent   map[string]bool
	failed map[string]string
}

func newMemOutbox(msgs ...models.OutboxMessage) *memOutbox {
	return &memOutbox{msgs: msgs, sent: map[string]bool{}, failed: map[string]string{}}
}

func (m *memOutbox) Pending(_ context.Context, limit int) ([]models.OutboxMessage, error) {
	var out []models.OutboxMessage
	for _, msg := range m.msgs {
		if !m.sent[msg.ID] && len(out) < limit {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memOutbox) MarkSent(_ context.Context, id string, _ time.Time) error {
	m.sent[id] = true
	return nil
}

func (m *memOutbox) MarkFailed(_ context.Context, id string, reason string) error {
	m.failed[id] = reason
	return nil
}

type fakeSender struct {
	SendFunc func(ctx context.Context, msg models.OutboxMessage) error
	sent     []models.OutboxMessage
}

func (f *fakeSender) Send(ctx context.Context, msg models.OutboxMessage) error {
	if f.SendFunc != nil {
		if err := f.SendFunc(ctx, msg); err != nil {
			return err
		}
	}
	f.sent = append(f.sent, msg)
	return nil
}

func paidOrder(locale string) models.Order {
	return models.Order{
		ID:          primitive.NewObjectID(),
		TotalAmount: decimal.RequireFromString("100"),
		Currency:    "usd",
		Status:      models.OrderPaid,
		Locale:      locale,
		Shipping: models.ShippingDetails{
			Name: "Ana", Email: "ana@example.com", Address: "1 Elm St", City: "Springfield", Country: "US", Zip: "12345",
		},
		Items: []models.OrderItem{{Name: "Oak Table", Quantity: 2, UnitPrice: decimal.RequireFromString("50")}},
	}
}

func TestOrderConfirmationRendersInOrderLocale(t *testing.T) {
	bundle := i18n.MustLoad()
	order := paidOrder("en")
	now := time.Now()

	msg, err := OrderConfirmation(bundle, order, now)
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, models.OutboxOrderConfirmation, msg.Kind)
	assert.Equal(t, models.OutboxPending, msg.Status)
	assert.Equal(t, "ana@example.com", msg.To)
	assert.Equal(t, order.ID.Hex(), msg.OrderID)
	assert.Contains(t, msg.Subject, order.ID.Hex())
	assert.Contains(t, msg.Body, "Hi Ana")
	assert.Contains(t, msg.Body, "100.00 usd")
	assert.Contains(t, msg.Body, "Oak Table x2 @ 50.00")

	idMsg, err := OrderConfirmation(bundle, paidOrder("id"), now)
	require.NoError(t, err)
	assert.Contains(t, idMsg.Subject, "Pesanan Furnistore")
	assert.Equal(t, "id", idMsg.Locale)

	fallback, err := OrderConfirmation(bundle, paidOrder(""), now)
	require.NoError(t, err)
	assert.Equal(t, i18n.DefaultLang, fallback.Locale)
}

func TestDispatcherDeliver(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	store := newMemOutbox()
	sender := &fakeSender{}
	d := NewDispatcher(store, sender, m, logging.Discard())

	msg := models.OutboxMessage{ID: "m1", OrderID: "o1", To: "a@example.com"}
	require.NoError(t, d.Deliver(context.Background(), msg))
	assert.True(t, store.sent["m1"])
	assert.Len(t, sender.sent, 1)
	assert.Equal(t, 1.0, promtest.ToFloat64(m.EmailsSent.WithLabelValues("sent")))

	sender.SendFunc = func(context.Context, models.OutboxMessage) error { return errors.New("smtp down") }
	err := d.Deliver(context.Background(), models.OutboxMessage{ID: "m2"})
	assert.Error(t, err)
	assert.False(t, store.sent["m2"])
	assert.Equal(t, "smtp down", store.failed["m2"])
	assert.Equal(t, 1.0, promtest.ToFloat64(m.EmailsSent.WithLabelValues("failed")))
}

func TestDispatcherRelayPending(t *testing.T) {
	store := newMemOutbox(
		models.OutboxMessage{ID: "a"},
		models.OutboxMessage{ID: "b"},
		models.OutboxMessage{ID: "c"},
	)
	sender := &fakeSender{SendFunc: func(_ context.Context, msg models.OutboxMessage) error {
		if msg.ID == "b" {
			return errors.New("rejected")
		}
		return nil
	}}
	d := NewDispatcher(store, sender, nil, logging.Discard())

	res, err := d.RelayPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, RelayResult{Sent: 2, Failed: 1}, res)

	pending, _ := store.Pending(context.Background(), 10)
	require.Len(t, pending, 1)
	assert.Equal(t, "b", pending[0].ID)
}

type fakeWriter struct {
	msgs []kafka.Message
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaSenderPublishesJSON(t *testing.T) {
	w := &fakeWriter{}
	s := &KafkaSender{writer: w}

	err := s.Send(context.Background(), models.OutboxMessage{
		ID: "m1", Kind: models.OutboxOrderConfirmation, OrderID: "o1", To: "a@example.com", Subject: "s", Body: "b",
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "o1", string(w.msgs[0].Key))

	var got map[string]string
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, "m1", got["id"])
	assert.Equal(t, "a@example.com", got["to"])
}

func TestSMTPMessage(t *testing.T) {
	s := NewSMTP(config.MailConfig{From: "Shop <orders@example.com>", SMTPHost: "localhost", SMTPPort: 2525})

	m, err := s.message(models.OutboxMessage{To: "ana@example.com", Subject: "Hello", Body: "Body"})
	require.NoError(t, err)
	rcpts, err := m.GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"ana@example.com"}, rcpts)

	_, err = s.message(models.OutboxMessage{To: "not an address"})
	assert.Error(t, err)
}

func TestNewSender(t *testing.T) {
	s, err := NewSender(config.MailConfig{Transport: "log"}, logging.Discard())
	require.NoError(t, err)
	assert.IsType(t, LogSender{}, s)

	s, err = NewSender(config.MailConfig{Transport: "kafka", KafkaBrokers: "k1:9092", NotificationTopic: "t"}, logging.Discard())
	require.NoError(t, err)
	assert.IsType(t, &KafkaSender{}, s)

	_, err = NewSender(config.MailConfig{Transport: "pigeon"}, logging.Discard())
	assert.Error(t, err)
}
