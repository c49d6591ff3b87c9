package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"furnistore/apperr"
	"furnistore/models"
)

func TestCatalogServesFromCacheUntilInvalidated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedProduct("Oak Table", "50", 3)

	list, err := env.catalog.List(ctx, models.ProductQuery{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, decimal.RequireFromString("50").Equal(list[0].Price))

	env.seedProduct("Pine Shelf", "20", 3)
	list, _ = env.catalog.List(ctx, models.ProductQuery{})
	assert.Len(t, list, 1, "second read is served from cache")

	admin, _ := env.catalog.ListAdmin(ctx, models.ProductQuery{})
	assert.Len(t, admin, 2, "admin listing skips the cache")

	require.NoError(t, env.catalog.Create(ctx, &models.Product{Name: "Stool", Category: "chairs", Price: decimal.RequireFromString("9.999"), Stock: 1}))
	list, _ = env.catalog.List(ctx, models.ProductQuery{})
	assert.Len(t, list, 3, "writes invalidate cached listings")

	cats, err := env.catalog.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"chairs", "tables"}, cats)
}

func TestCatalogFilters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedProduct("Oak Table", "50", 3)
	env.store.Products.Seed(models.Product{Name: "Oak Chair", Category: "chairs", Price: decimal.NewFromInt(10)})

	list, err := env.catalog.List(ctx, models.ProductQuery{Search: "oak", Category: "chairs"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Oak Chair", list[0].Name)

	list, _ = env.catalog.List(ctx, models.ProductQuery{Search: "OAK"})
	assert.Len(t, list, 2)
}

func TestCatalogProductLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p := &models.Product{Name: "Desk", Category: "desks", Price: decimal.RequireFromString("120.505"), Stock: 2}
	require.NoError(t, env.catalog.Create(ctx, p))
	assert.Equal(t, "120.51", p.Price.StringFixed(2))

	got, err := env.catalog.Get(ctx, p.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "Desk", got.Name)

	name := "Standing Desk"
	updated, err := env.catalog.Update(ctx, p.ID.Hex(), models.ProductUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)

	got, _ = env.catalog.Get(ctx, p.ID.Hex())
	assert.Equal(t, name, got.Name, "product cache entry is invalidated on update")

	zero := decimal.Zero
	_, err = env.catalog.Update(ctx, p.ID.Hex(), models.ProductUpdate{Price: &zero})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	require.NoError(t, env.catalog.Delete(ctx, p.ID.Hex()))
	_, err = env.catalog.Get(ctx, p.ID.Hex())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	assert.True(t, apperr.Is(env.catalog.Delete(ctx, primitive.NewObjectID().Hex()), apperr.KindNotFound))
	_, err = env.catalog.Get(ctx, "not-an-id")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	err = env.catalog.Create(ctx, &models.Product{Name: "Free", Price: decimal.Zero})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
