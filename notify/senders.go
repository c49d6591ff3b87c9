package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/wneessen/go-mail"

	"furnistore/config"
	"furnistore/models"
)

// LogSender writes messages to the log. It is the development transport.
type LogSender struct {
	Log *slog.Logger
}

func (s LogSender) Send(_ context.Context, msg models.OutboxMessage) error {
	s.Log.Info("email", "to", msg.To, "subject", msg.Subject, "order_id", msg.OrderID)
	return nil
}

type SMTPSender struct {
	from string
	host string
	opts []mail.Option
}

func NewSMTP(cfg config.MailConfig) *SMTPSender {
	opts := []mail.Option{
		mail.WithPort(cfg.SMTPPort),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(10 * time.Second),
	}
	if cfg.SMTPUsername != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.SMTPUsername),
			mail.WithPassword(cfg.SMTPPassword),
		)
	}
	return &SMTPSender{from: cfg.From, host: cfg.SMTPHost, opts: opts}
}

func (s *SMTPSender) message(msg models.OutboxMessage) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(s.from); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("to address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	return m, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg models.OutboxMessage) error {
	m, err := s.message(msg)
	if err != nil {
		return err
	}
	client, err := mail.NewClient(s.host, s.opts...)
	if err != nil {
		return err
	}
	return client.DialAndSendWithContext(ctx, m)
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSender publishes messages to a topic for a separate mailer to consume.
type KafkaSender struct {
	writer messageWriter
}

func NewKafka(brokersCSV, topic string) *KafkaSender {
	var brokers []string
	for _, b := range strings.Split(brokersCSV, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return &KafkaSender{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}}
}

type notificationEvent struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	OrderID string `json:"orderId"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Locale  string `json:"locale"`
}

func (s *KafkaSender) Send(ctx context.Context, msg models.OutboxMessage) error {
	data, err := json.Marshal(notificationEvent{
		ID:      msg.ID,
		Kind:    msg.Kind,
		OrderID: msg.OrderID,
		To:      msg.To,
		Subject: msg.Subject,
		Body:    msg.Body,
		Locale:  msg.Locale,
	})
	if err != nil {
		return err
	}
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.OrderID),
		Value: data,
		Time:  time.Now().UTC(),
	})
}

func (s *KafkaSender) Close() error {
	return s.writer.Close()
}

// NewSender picks the transport named by cfg.Transport.
func NewSender(cfg config.MailConfig, log *slog.Logger) (Sender, error) {
	switch cfg.Transport {
	case "", "log":
		return LogSender{Log: log}, nil
	case "smtp":
		return NewSMTP(cfg), nil
	case "kafka":
		return NewKafka(cfg.KafkaBrokers, cfg.NotificationTopic), nil
	default:
		return nil, fmt.Errorf("unknown mail transport %q", cfg.Transport)
	}
}
