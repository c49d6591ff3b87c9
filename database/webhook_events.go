package database

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"furnistore/models"
)

type WebhookEvents struct {
	coll *mongo.Collection
}

func NewWebhookEvents(db *mongo.Database) *WebhookEvents {
	return &WebhookEvents{coll: db.Collection(WebhookEventsCollection)}
}

func (r *WebhookEvents) Exists(ctx context.Context, id string) (bool, error) {
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Insert returns ErrDuplicateKey when the event id was already recorded.
func (r *WebhookEvents) Insert(ctx context.Context, event models.WebhookEvent) error {
	_, err := r.coll.InsertOne(ctx, event)
	return translate(err)
}
