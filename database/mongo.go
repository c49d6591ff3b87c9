package database

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

var (
	ErrNotFound     = errors.New("database: not found")
	ErrDuplicateKey = errors.New("database: duplicate key")
)

const (
	UsersCollection         = "users"
	ProductsCollection      = "products"
	OrdersCollection        = "orders"
	CartsCollection         = "carts"
	WebhookEventsCollection = "webhook_events"
	OutboxCollection        = "outbox"
	BlacklistCollection     = "blacklist_tokens"
)

type Store struct {
	Client *mongo.Client
	DB     *mongo.Database

	Users         *Users
	Products      *Products
	Orders        *Orders
	Carts         *Carts
	WebhookEvents *WebhookEvents
	Outbox        *Outbox
}

func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetRegistry(NewRegistry()))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	db := client.Database(dbName)
	return &Store{
		Client:        client,
		DB:            db,
		Users:         NewUsers(db),
		Products:      NewProducts(db),
		Orders:        NewOrders(db),
		Carts:         NewCarts(db),
		WebhookEvents: NewWebhookEvents(db),
		Outbox:        NewOutbox(db),
	}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	return s.Client.Disconnect(ctx)
}

// Transact runs fn inside a multi-document transaction. Repository calls made
// with the ctx passed to fn join the transaction. Transient errors (write
// conflicts between concurrent transactions) are retried by the driver.
func (s *Store) Transact(ctx context.Context, fn func(ctx context.Context) error) error {
	sess, err := s.Client.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicateKey
	default:
		return err
	}
}
