package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"furnistore/cache"
	"furnistore/config"
	"furnistore/database"
	"furnistore/i18n"
	"furnistore/logging"
	"furnistore/metrics"
	"furnistore/notify"
	"furnistore/payment"
	"furnistore/ratelimit"
)

// app holds the process-wide dependencies shared by the commands.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	store   *database.Store
	metrics *metrics.Metrics
	bundle  *i18n.Bundle
	redis   *redis.Client
	sender  notify.Sender
}

func newApp(ctx context.Context) (*app, error) {
	config.LoadEnv()
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	log := logging.New("furnistore", cfg.LogLevel)

	bundle, err := i18n.Load()
	if err != nil {
		return nil, fmt.Errorf("i18n: %w", err)
	}

	store, err := database.Connect(ctx, cfg.MongoURI, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a := &app{cfg: cfg, log: log, store: store, metrics: metrics.New(reg), bundle: bundle}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			_ = store.Close(context.Background())
			return nil, fmt.Errorf("redis url: %w", err)
		}
		a.redis = redis.NewClient(opts)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable, using in-process cache and limiter until it recovers", "error", err)
		}
	}

	a.sender, err = notify.NewSender(cfg.Mail, log)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) gateway() payment.Gateway {
	p := a.cfg.Payment
	if p.Provider == "razorpay" {
		return payment.NewRazorpay(p.RazorpayKeyID, p.RazorpayKeySecret, p.RazorpayWebhookSecret)
	}
	return payment.NewStripe(p.StripeSecretKey, p.StripeWebhookSecret, nil)
}

func (a *app) cacheStore() cache.Store {
	local := cache.NewLocal(1024, a.cfg.CatalogCacheTTL)
	if a.redis == nil {
		return local
	}
	return cache.NewFallback(cache.NewRedis(a.redis), local, a.log)
}

func (a *app) limiter(scope string, limit int) ratelimit.Limiter {
	if limit <= 0 {
		return nil
	}
	rule := ratelimit.Rule{Limit: limit, Window: a.cfg.RateLimitWindow}
	local := ratelimit.NewLocal(10000, rule)
	if a.redis == nil {
		return local
	}
	return ratelimit.NewFallback(ratelimit.NewRedis(a.redis, scope, rule), local, a.log)
}

func (a *app) dispatcher() *notify.Dispatcher {
	return notify.NewDispatcher(a.store.Outbox, a.sender, a.metrics, a.log)
}

func (a *app) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if c, ok := a.sender.(io.Closer); ok {
		if err := c.Close(); err != nil {
			a.log.Warn("close sender", "error", err)
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	return a.store.Close(ctx)
}
