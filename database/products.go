package database

import (
	"context"
	"regexp"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"furnistore/models"
)

type Products struct {
	coll *mongo.Collection
}

func NewProducts(db *mongo.Database) *Products {
	return &Products{coll: db.Collection(ProductsCollection)}
}

func (r *Products) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Product, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	products := []models.Product{}
	if err := cursor.All(ctx, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (r *Products) List(ctx context.Context, q models.ProductQuery) ([]models.Product, error) {
	filter := bson.M{}
	if q.Category != "" {
		filter["category"] = q.Category
	}
	if q.Search != "" {
		filter["name"] = bson.M{"$regex": regexp.QuoteMeta(q.Search), "$options": "i"}
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
		return nil, err
	}
	products := []models.Product{}
	if err := cursor.All(ctx, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (r *Products) Get(ctx context.Context, id primitive.ObjectID) (models.Product, error) {
	var product models.Product
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&product)
	return product, translate(err)
}

func (r *Products) Categories(ctx context.Context) ([]string, error) {
	values, err := r.coll.Distinct(ctx, "category", bson.M{})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *Products) Create(ctx context.Context, p *models.Product) error {
	now := time.Now()
	p.ID = primitive.NewObjectID()
	p.CreatedAt = now
	p.UpdatedAt = now
	_, err := r.coll.InsertOne(ctx, p)
	return translate(err)
}

func (r *Products) Update(ctx context.Context, id primitive.ObjectID, body models.ProductUpdate) (models.Product, error) {
	update := bson.M{}
	if body.Name != nil {
		update["name"] = *body.Name
	}
	if body.Description != nil {
		update["description"] = *body.Description
	}
	if body.Category != nil {
		update["category"] = *body.Category
	}
	if body.Price != nil {
		update["price"] = *body.Price
	}
	if body.Stock != nil {
		update["stock"] = *body.Stock
	}
	if body.ImageURL != nil {
		update["imageUrl"] = *body.ImageURL
	}
	update["updatedAt"] = time.Now()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Product
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": update}, opts).Decode(&updated)
	return updated, translate(err)
}

func (r *Products) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DecrementStock reports false when the product does not have qty in stock.
func (r *Products) DecrementStock(ctx context.Context, id primitive.ObjectID, qty int) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "stock": bson.M{"$gte": qty}},
		bson.M{"$inc": bson.M{"stock": -qty}, "$set": bson.M{"updatedAt": time.Now()}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}
