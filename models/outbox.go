package models

import "time"

type OutboxStatus string

const (
	OutboxPending OutboxStatus = "pending"
	OutboxSent    OutboxStatus = "sent"
)

const OutboxOrderConfirmation = "order_confirmation"

type OutboxMessage struct {
	ID        string       `bson:"_id" json:"id"`
	Kind      string       `bson:"kind" json:"kind"`
	OrderID   string       `bson:"orderId" json:"orderId"`
	To        string       `bson:"to" json:"to"`
	Subject   string       `bson:"subject" json:"subject"`
	Body      string       `bson:"body" json:"body"`
	Locale    string       `bson:"locale" json:"locale"`
	Status    OutboxStatus `bson:"status" json:"status"`
	Attempts  int          `bson:"attempts" json:"attempts"`
	LastError string       `bson:"lastError,omitempty" json:"lastError,omitempty"`
	CreatedAt time.Time    `bson:"createdAt" json:"createdAt"`
	SentAt    *time.Time   `bson:"sentAt,omitempty" json:"sentAt,omitempty"`
}
