package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"furnistore/models"
)

type Orders struct {
	coll *mongo.Collection
}

func NewOrders(db *mongo.Database) *Orders {
	return &Orders{coll: db.Collection(OrdersCollection)}
}

func (r *Orders) Insert(ctx context.Context, order *models.Order) error {
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	_, err := r.coll.InsertOne(ctx, order)
	return translate(err)
}

func (r *Orders) SetPaymentSession(ctx context.Context, id primitive.ObjectID, provider, sessionID string) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"paymentProvider":  provider,
		"paymentSessionId": sessionID,
		"updatedAt":        time.Now(),
	}})
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Orders) Get(ctx context.Context, id primitive.ObjectID) (models.Order, error) {
	var order models.Order
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&order)
	return order, translate(err)
}

func (r *Orders) FindBySession(ctx context.Context, sessionID string) (models.Order, error) {
	var order models.Order
	err := r.coll.FindOne(ctx, bson.M{"paymentSessionId": sessionID}).Decode(&order)
	return order, translate(err)
}

// MarkPaid moves a PENDING order to PAID. It reports false, without error,
// when the order is in any other status.
func (r *Orders) MarkPaid(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.OrderPending},
		bson.M{"$set": bson.M{"status": models.OrderPaid, "paidAt": at, "updatedAt": at}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// SetStatus overwrites the status and returns the order as it was before.
func (r *Orders) SetStatus(ctx context.Context, id primitive.ObjectID, status models.OrderStatus) (models.Order, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)
	var before models.Order
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": status, "updatedAt": time.Now()}},
		opts,
	).Decode(&before)
	return before, translate(err)
}

func (r *Orders) CancelForUser(ctx context.Context, id, userID primitive.ObjectID) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "userId": userID, "status": models.OrderPending},
		bson.M{"$set": bson.M{"status": models.OrderCanceled, "updatedAt": time.Now()}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func (r *Orders) Cancel(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "status": bson.M{"$nin": []models.OrderStatus{models.OrderDelivered, models.OrderCanceled}}},
		bson.M{"$set": bson.M{"status": models.OrderCanceled, "updatedAt": time.Now()}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func (r *Orders) List(ctx context.Context, q models.OrderQuery) ([]models.Order, int64, error) {
	filter := bson.M{}
	if q.UserID != nil {
		filter["userId"] = *q.UserID
	}
	if q.Status != "" {
		filter["status"] = q.Status
	}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
		if q.Page > 1 {
			opts.SetSkip(int64((q.Page - 1) * q.Limit))
		}
	}
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	orders := []models.Order{}
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}
