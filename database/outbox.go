package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"furnistore/models"
)

type Outbox struct {
	coll *mongo.Collection
}

func NewOutbox(db *mongo.Database) *Outbox {
	return &Outbox{coll: db.Collection(OutboxCollection)}
}

func (r *Outbox) Enqueue(ctx context.Context, msg models.OutboxMessage) error {
	_, err := r.coll.InsertOne(ctx, msg)
	return translate(err)
}

func (r *Outbox) Pending(ctx context.Context, limit int) ([]models.OutboxMessage, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}).SetLimit(int64(limit))
	cursor, err := r.coll.Find(ctx, bson.M{"status": models.OutboxPending}, opts)
	if err != nil {
		return nil, err
	}
	out := []models.OutboxMessage{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Outbox) MarkSent(ctx context.Context, id string, at time.Time) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.OutboxPending},
		bson.M{"$set": bson.M{"status": models.OutboxSent, "sentAt": at}, "$inc": bson.M{"attempts": 1}},
	)
	return err
}

func (r *Outbox) MarkFailed(ctx context.Context, id string, reason string) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"lastError": reason}, "$inc": bson.M{"attempts": 1}},
	)
	return err
}
