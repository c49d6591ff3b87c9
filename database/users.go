package database

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"furnistore/models"
)

type Users struct {
	coll      *mongo.Collection
	blacklist *mongo.Collection
}

func NewUsers(db *mongo.Database) *Users {
	return &Users{
		coll:      db.Collection(UsersCollection),
		blacklist: db.Collection(BlacklistCollection),
	}
}

func (r *Users) Create(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	_, err := r.coll.InsertOne(ctx, user)
	return translate(err)
}

func (r *Users) FindByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := r.coll.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	return user, translate(err)
}

func (r *Users) FindByID(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	var user models.User
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	return user, translate(err)
}

// Blacklist revokes a token. The TTL index on expiresAt removes it once the
// token would have expired anyway.
func (r *Users) Blacklist(ctx context.Context, token string, expiresAt time.Time) error {
	_, err := r.blacklist.InsertOne(ctx, bson.M{"token": token, "expiresAt": expiresAt})
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

func (r *Users) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	err := r.blacklist.FindOne(ctx, bson.M{"token": token}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
