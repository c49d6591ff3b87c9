// Package cache stores serialized catalog reads. Redis is the shared store;
// an in-process LRU takes over whenever Redis is unreachable.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

var ErrMiss = errors.New("cache: miss")

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) error
}

type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return b, err
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *Redis) DeletePrefix(ctx context.Context, prefix string) error {
	iter := r.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) == 100 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) > 0 {
		return r.client.Del(ctx, keys...).Err()
	}
	return nil
}

// Local is a bounded in-process store. Entries share one TTL fixed at
// construction; the ttl passed to Set is ignored.
type Local struct {
	lru *expirable.LRU[string, []byte]
}

func NewLocal(size int, ttl time.Duration) *Local {
	return &Local{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (l *Local) Get(_ context.Context, key string) ([]byte, error) {
	if v, ok := l.lru.Get(key); ok {
		return v, nil
	}
	return nil, ErrMiss
}

func (l *Local) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	l.lru.Add(key, value)
	return nil
}

func (l *Local) DeletePrefix(_ context.Context, prefix string) error {
	for _, k := range l.lru.Keys() {
		if strings.HasPrefix(k, prefix) {
			l.lru.Remove(k)
		}
	}
	return nil
}

// Fallback reads and writes through primary and switches to local for any
// call where primary fails with something other than a miss.
type Fallback struct {
	primary Store
	local   Store
	log     *slog.Logger
}

func NewFallback(primary, local Store, log *slog.Logger) *Fallback {
	return &Fallback{primary: primary, local: local, log: log}
}

func (f *Fallback) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := f.primary.Get(ctx, key)
	if err == nil || errors.Is(err, ErrMiss) {
		return v, err
	}
	f.log.Warn("cache get failed, using local store", "key", key, "error", err)
	return f.local.Get(ctx, key)
}

func (f *Fallback) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := f.primary.Set(ctx, key, value, ttl); err != nil {
		f.log.Warn("cache set failed, using local store", "key", key, "error", err)
		return f.local.Set(ctx, key, value, ttl)
	}
	return nil
}

// DeletePrefix always clears both stores so a recovered primary and the
// local copy cannot serve stale entries.
func (f *Fallback) DeletePrefix(ctx context.Context, prefix string) error {
	localErr := f.local.DeletePrefix(ctx, prefix)
	if err := f.primary.DeletePrefix(ctx, prefix); err != nil {
		return err
	}
	return localErr
}
