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

type Carts struct {
	coll *mongo.Collection
}

func NewCarts(db *mongo.Database) *Carts {
	return &Carts{coll: db.Collection(CartsCollection)}
}

func (r *Carts) List(ctx context.Context, userID primitive.ObjectID) ([]models.CartItem, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"userId": userID}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	items := []models.CartItem{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *Carts) Get(ctx context.Context, userID, productID primitive.ObjectID) (models.CartItem, error) {
	var item models.CartItem
	err := r.coll.FindOne(ctx, bson.M{"userId": userID, "productId": productID}).Decode(&item)
	return item, translate(err)
}

// Add increments the quantity of a product in the cart, creating the line if needed.
func (r *Carts) Add(ctx context.Context, userID, productID primitive.ObjectID, qty int) (models.CartItem, error) {
	now := time.Now()
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var item models.CartItem
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"userId": userID, "productId": productID},
		bson.M{
			"$inc":         bson.M{"quantity": qty},
			"$set":         bson.M{"updatedAt": now},
			"$setOnInsert": bson.M{"createdAt": now},
		},
		opts,
	).Decode(&item)
	return item, translate(err)
}

func (r *Carts) SetQuantity(ctx context.Context, userID, productID primitive.ObjectID, qty int) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"userId": userID, "productId": productID},
		bson.M{"$set": bson.M{"quantity": qty, "updatedAt": time.Now()}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func (r *Carts) Remove(ctx context.Context, userID, productID primitive.ObjectID) (bool, error) {
	res, err := r.coll.DeleteOne(ctx, bson.M{"userId": userID, "productId": productID})
	if err != nil {
		return false, err
	}
	return res.DeletedCount == 1, nil
}

func (r *Carts) Clear(ctx context.Context, userID primitive.ObjectID) error {
	_, err := r.coll.DeleteMany(ctx, bson.M{"userId": userID})
	return err
}

// Replace swaps the whole cart for items. Callers run it inside a transaction.
func (r *Carts) Replace(ctx context.Context, userID primitive.ObjectID, items []models.CartItem) error {
	if err := r.Clear(ctx, userID); err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	now := time.Now()
	docs := make([]interface{}, 0, len(items))
	for _, it := range items {
		it.ID = primitive.NewObjectID()
		it.UserID = userID
		it.CreatedAt = now
		it.UpdatedAt = now
		docs = append(docs, it)
	}
	_, err := r.coll.InsertMany(ctx, docs)
	return translate(err)
}
