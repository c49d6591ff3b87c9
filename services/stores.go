// Package services holds the storefront's business rules. Handlers call into
// services; services talk to storage only through the interfaces below so
// they can run against MongoDB or the in-memory store used in tests.
package services

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"furnistore/apperr"
	"furnistore/database"
	"furnistore/models"
)

// Transactor runs fn atomically. Store calls made with the ctx handed to fn
// take part in the transaction.
type Transactor interface {
	Transact(ctx context.Context, fn func(ctx context.Context) error) error
}

type ProductStore interface {
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Product, error)
	List(ctx context.Context, q models.ProductQuery) ([]models.Product, error)
	Get(ctx context.Context, id primitive.ObjectID) (models.Product, error)
	Categories(ctx context.Context) ([]string, error)
	Create(ctx context.Context, p *models.Product) error
	Update(ctx context.Context, id primitive.ObjectID, body models.ProductUpdate) (models.Product, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	DecrementStock(ctx context.Context, id primitive.ObjectID, qty int) (bool, error)
}

type OrderStore interface {
	Insert(ctx context.Context, order *models.Order) error
	SetPaymentSession(ctx context.Context, id primitive.ObjectID, provider, sessionID string) error
	Get(ctx context.Context, id primitive.ObjectID) (models.Order, error)
	FindBySession(ctx context.Context, sessionID string) (models.Order, error)
	MarkPaid(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error)
	SetStatus(ctx context.Context, id primitive.ObjectID, status models.OrderStatus) (models.Order, error)
	CancelForUser(ctx context.Context, id, userID primitive.ObjectID) (bool, error)
	Cancel(ctx context.Context, id primitive.ObjectID) (bool, error)
	List(ctx context.Context, q models.OrderQuery) ([]models.Order, int64, error)
}

type CartStore interface {
	List(ctx context.Context, userID primitive.ObjectID) ([]models.CartItem, error)
	Get(ctx context.Context, userID, productID primitive.ObjectID) (models.CartItem, error)
	Add(ctx context.Context, userID, productID primitive.ObjectID, qty int) (models.CartItem, error)
	SetQuantity(ctx context.Context, userID, productID primitive.ObjectID, qty int) (bool, error)
	Remove(ctx context.Context, userID, productID primitive.ObjectID) (bool, error)
	Clear(ctx context.Context, userID primitive.ObjectID) error
	Replace(ctx context.Context, userID primitive.ObjectID, items []models.CartItem) error
}

type WebhookEventStore interface {
	Exists(ctx context.Context, id string) (bool, error)
	Insert(ctx context.Context, event models.WebhookEvent) error
}

type OutboxStore interface {
	Enqueue(ctx context.Context, msg models.OutboxMessage) error
}

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (models.User, error)
	Blacklist(ctx context.Context, token string, expiresAt time.Time) error
	IsBlacklisted(ctx context.Context, token string) (bool, error)
}

const (
	MaxOrderLines   = 100
	MaxLineQuantity = 99
	defaultPageSize = 20
	maxPageSize     = 100
)

func parseID(hex string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, apperr.Validation("error.invalid_id", "Invalid ID")
	}
	return id, nil
}

// notFound maps a storage miss to a NotFound error and passes anything else through.
func notFound(err error, key, msg string) error {
	if errors.Is(err, database.ErrNotFound) {
		return apperr.NotFound(key, msg)
	}
	return err
}

func page(p, limit int) (int, int) {
	if p < 1 {
		p = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return p, limit
}
