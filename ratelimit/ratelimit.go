// Package ratelimit implements fixed-window request limits shared through
// Redis, with an in-process window used while Redis is unavailable.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

type Rule struct {
	Limit  int
	Window time.Duration
}

func windowStart(now time.Time, window time.Duration) time.Time {
	return now.Truncate(window)
}

func result(rule Rule, count int64, start time.Time) Result {
	remaining := rule.Limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= int64(rule.Limit),
		Limit:     rule.Limit,
		Remaining: remaining,
		ResetAt:   start.Add(rule.Window),
	}
}

type RedisLimiter struct {
	client *redis.Client
	rule   Rule
	prefix string
	now    func() time.Time
}

func NewRedis(client *redis.Client, prefix string, rule Rule) *RedisLimiter {
	return &RedisLimiter{client: client, rule: rule, prefix: prefix, now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	start := windowStart(l.now(), l.rule.Window)
	redisKey := fmt.Sprintf("ratelimit:%s:%s:%d", l.prefix, key, start.Unix())

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, l.rule.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, err
	}
	return result(l.rule, incr.Val(), start), nil
}

type LocalLimiter struct {
	mu     sync.Mutex
	counts *expirable.LRU[string, int64]
	rule   Rule
	now    func() time.Time
}

func NewLocal(size int, rule Rule) *LocalLimiter {
	return &LocalLimiter{
		counts: expirable.NewLRU[string, int64](size, nil, rule.Window),
		rule:   rule,
		now:    time.Now,
	}
}

func (l *LocalLimiter) Allow(_ context.Context, key string) (Result, error) {
	start := windowStart(l.now(), l.rule.Window)
	k := fmt.Sprintf("%s:%d", key, start.Unix())

	l.mu.Lock()
	count, _ := l.counts.Get(k)
	count++
	l.counts.Add(k, count)
	l.mu.Unlock()

	return result(l.rule, count, start), nil
}

// Fallback asks primary first and counts locally when primary errors.
type Fallback struct {
	primary Limiter
	local   Limiter
	log     *slog.Logger
}

func NewFallback(primary, local Limiter, log *slog.Logger) *Fallback {
	return &Fallback{primary: primary, local: local, log: log}
}

func (f *Fallback) Allow(ctx context.Context, key string) (Result, error) {
	res, err := f.primary.Allow(ctx, key)
	if err == nil {
		return res, nil
	}
	f.log.Warn("rate limiter unavailable, counting locally", "key", key, "error", err)
	return f.local.Allow(ctx, key)
}
