package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"furnistore/apperr"
	"furnistore/cache"
	"furnistore/models"
)

const catalogPrefix = "catalog:"

// Catalog serves product reads through the cache and invalidates it on
// every admin write.
type Catalog struct {
	products ProductStore
	cache    cache.Store
	ttl      time.Duration
	group    singleflight.Group
	log      *slog.Logger
}

func NewCatalog(products ProductStore, store cache.Store, ttl time.Duration, log *slog.Logger) *Catalog {
	return &Catalog{products: products, cache: store, ttl: ttl, log: log}
}

func cached[T any](ctx context.Context, c *Catalog, key string, load func(context.Context) (T, error)) (T, error) {
	var out T
	b, err := c.cache.Get(ctx, key)
	switch {
	case err == nil:
		if json.Unmarshal(b, &out) == nil {
			return out, nil
		}
	case !errors.Is(err, cache.ErrMiss):
		c.log.Warn("catalog cache read", "key", key, "error", err)
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		val, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if b, err := json.Marshal(val); err == nil {
			if err := c.cache.Set(ctx, key, b, c.ttl); err != nil {
				c.log.Warn("catalog cache write", "key", key, "error", err)
			}
		}
		return val, nil
	})
	if err != nil {
		return out, err
	}
	return v.(T), nil
}

func (c *Catalog) invalidate(ctx context.Context) {
	if err := c.cache.DeletePrefix(ctx, catalogPrefix); err != nil {
		c.log.Warn("catalog cache invalidation", "error", err)
	}
}

func (c *Catalog) List(ctx context.Context, q models.ProductQuery) ([]models.Product, error) {
	q.Page, q.Limit = page(q.Page, q.Limit)
	q.Search = strings.TrimSpace(q.Search)
	key := fmt.Sprintf("%slist:%s:%s:%d:%d", catalogPrefix,
		url.QueryEscape(q.Category), url.QueryEscape(strings.ToLower(q.Search)), q.Page, q.Limit)
	return cached(ctx, c, key, func(ctx context.Context) ([]models.Product, error) {
		return c.products.List(ctx, q)
	})
}

func (c *Catalog) Get(ctx context.Context, idHex string) (models.Product, error) {
	id, err := parseID(idHex)
	if err != nil {
		return models.Product{}, err
	}
	return cached(ctx, c, catalogPrefix+"product:"+id.Hex(), func(ctx context.Context) (models.Product, error) {
		p, err := c.products.Get(ctx, id)
		return p, notFound(err, "product.not_found", "Product not found")
	})
}

func (c *Catalog) Categories(ctx context.Context) ([]string, error) {
	return cached(ctx, c, catalogPrefix+"categories", c.products.Categories)
}

// ListAdmin bypasses the cache so admins always see current stock.
func (c *Catalog) ListAdmin(ctx context.Context, q models.ProductQuery) ([]models.Product, error) {
	q.Page, q.Limit = page(q.Page, q.Limit)
	return c.products.List(ctx, q)
}

func validPrice(p *models.Product) error {
	if !p.Price.IsPositive() {
		return apperr.Validation("error.validation", "Some fields are invalid").
			WithFields(map[string]string{"price": "must be greater than 0"})
	}
	return nil
}

func (c *Catalog) Create(ctx context.Context, p *models.Product) error {
	if err := validPrice(p); err != nil {
		return err
	}
	p.Price = p.Price.Round(2)
	if err := c.products.Create(ctx, p); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

func (c *Catalog) Update(ctx context.Context, idHex string, body models.ProductUpdate) (models.Product, error) {
	id, err := parseID(idHex)
	if err != nil {
		return models.Product{}, err
	}
	if body.Price != nil {
		if !body.Price.IsPositive() {
			return models.Product{}, apperr.Validation("error.validation", "Some fields are invalid").
				WithFields(map[string]string{"price": "must be greater than 0"})
		}
		rounded := body.Price.Round(2)
		body.Price = &rounded
	}
	p, err := c.products.Update(ctx, id, body)
	if err != nil {
		return models.Product{}, notFound(err, "product.not_found", "Product not found")
	}
	c.invalidate(ctx)
	return p, nil
}

func (c *Catalog) Delete(ctx context.Context, idHex string) error {
	id, err := parseID(idHex)
	if err != nil {
		return err
	}
	if err := c.products.Delete(ctx, id); err != nil {
		return notFound(err, "product.not_found", "Product not found")
	}
	c.invalidate(ctx)
	return nil
}
