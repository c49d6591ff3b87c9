package models

import "time"

// WebhookEvent records a processed payment provider event. ID is the provider's
// event id and is unique, which is what makes redelivery a no-op.
type WebhookEvent struct {
	ID        string    `bson:"_id" json:"id"`
	Provider  string    `bson:"provider" json:"provider"`
	Type      string    `bson:"type" json:"type"`
	OrderID   string    `bson:"orderId,omitempty" json:"orderId,omitempty"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}
