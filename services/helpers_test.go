package services

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"furnistore/cache"
	"furnistore/i18n"
	"furnistore/logging"
	"furnistore/metrics"
	"furnistore/models"
	"furnistore/testutil"
)

type testEnv struct {
	store      *testutil.Store
	gateway    *testutil.Gateway
	mailer     *testutil.Mailer
	metrics    *metrics.Metrics
	orders     *Orders
	carts      *Carts
	catalog    *Catalog
	reconciler *Reconciler
	user       primitive.ObjectID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := testutil.NewStore()
	gw := testutil.NewGateway("whsec_test")
	mailer := &testutil.Mailer{}
	m := metrics.New(prometheus.NewRegistry())
	log := logging.Discard()

	return &testEnv{
		store:   store,
		gateway: gw,
		mailer:  mailer,
		metrics: m,
		orders:  NewOrders(store, store.Orders, store.Products, gw, "usd", "https://shop.example.com/", m, log),
		carts:   NewCarts(store, store.Carts, store.Products),
		catalog: NewCatalog(store.Products, cache.NewLocal(100, time.Minute), time.Minute, log),
		reconciler: NewReconciler(ReconcilerDeps{
			Tx:       store,
			Orders:   store.Orders,
			Carts:    store.Carts,
			Products: store.Products,
			Events:   store.WebhookEvents,
			Outbox:   store.Outbox,
			Gateway:  gw,
			Mailer:   mailer,
			Bundle:   i18n.MustLoad(),
			Metrics:  m,
			Log:      log,
		}),
		user: primitive.NewObjectID(),
	}
}

func (e *testEnv) seedProduct(name, price string, stock int) models.Product {
	return e.store.Products.Seed(models.Product{
		Name:     name,
		Category: "tables",
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
	})[0]
}

func checkoutInput(items ...ItemInput) CheckoutInput {
	return CheckoutInput{
		Name:    "Ana",
		Email:   "ana@example.com",
		Address: "1 Elm St",
		City:    "Springfield",
		Country: "US",
		Zip:     "12345",
		Items:   items,
	}
}

func item(p models.Product, qty int) ItemInput {
	return ItemInput{ProductID: p.ID.Hex(), Quantity: qty}
}
