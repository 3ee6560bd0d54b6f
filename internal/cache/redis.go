// Package cache decorates a directory store with a Redis read-through cache
// and a long-lived stale copy served when the store is unavailable.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shubhsaxena/directory-assistant/internal/config"
	"github.com/shubhsaxena/directory-assistant/internal/models"
	"github.com/shubhsaxena/directory-assistant/internal/observability"
	"github.com/shubhsaxena/directory-assistant/internal/store"
)

const keyPrefix = "dir:"

// kv is the slice of Redis the cache needs.
type kv interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	DeleteMatching(ctx context.Context, pattern string) (int, error)
	Ping(ctx context.Context) error
	Close() error
}

type redisKV struct {
	client redis.UniversalClient
}

func NewRedisClient(cfg config.RedisConfig) (redis.UniversalClient, error) {
	if len(cfg.Addresses) == 0 {
		return nil, fmt.Errorf("redis: no addresses configured")
	}

	var client redis.UniversalClient
	if len(cfg.Addresses) > 1 {
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        cfg.Addresses,
			Password:     cfg.Password,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:         cfg.Addresses[0],
			Password:     cfg.Password,
			DB:           cfg.DB,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func (r redisKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (r redisKV) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, val, ttl).Err()
}

func (r redisKV) DeleteMatching(ctx context.Context, pattern string) (int, error) {
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("scanning %s: %w", pattern, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return 0, fmt.Errorf("deleting %d keys: %w", len(keys), err)
	}
	return len(keys), nil
}

func (r redisKV) Ping(ctx context.Context) error { return r.client.Ping(ctx).Err() }
func (r redisKV) Close() error                   { return r.client.Close() }

// Directory is a store.Directory that answers from Redis when it can. Cache
// faults never fail a lookup: they are logged and the wrapped store is asked.
type Directory struct {
	next   store.Directory
	kv     kv
	ttl    config.CacheTTLConfig
	logger *zap.Logger
}

func NewRedisCache(cfg config.RedisConfig, next store.Directory, logger *zap.Logger) (*Directory, error) {
	client, err := NewRedisClient(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("redis cache connected", zap.Strings("addresses", cfg.Addresses))
	return newDirectory(redisKV{client: client}, next, cfg.TTL, logger), nil
}

func newDirectory(backend kv, next store.Directory, ttl config.CacheTTLConfig, logger *zap.Logger) *Directory {
	return &Directory{next: next, kv: backend, ttl: ttl, logger: logger}
}

func (d *Directory) FindEmployees(ctx context.Context, p models.Predicate) ([]models.Employee, error) {
	return readThrough(ctx, d, models.KindEmployee, p, d.next.FindEmployees)
}

func (d *Directory) FindEvents(ctx context.Context, p models.Predicate) ([]models.Event, error) {
	return readThrough(ctx, d, models.KindEvent, p, d.next.FindEvents)
}

func (d *Directory) FindTasks(ctx context.Context, p models.Predicate) ([]models.Task, error) {
	return readThrough(ctx, d, models.KindTask, p, d.next.FindTasks)
}

func (d *Directory) FindActivities(ctx context.Context, p models.Predicate) ([]models.Activity, error) {
	return readThrough(ctx, d, models.KindActivity, p, d.next.FindActivities)
}

func (d *Directory) FindGeneralInfo(ctx context.Context, p models.Predicate) ([]models.GeneralInfo, error) {
	return readThrough(ctx, d, models.KindGeneralInfo, p, d.next.FindGeneralInfo)
}

func readThrough[R any](ctx context.Context, d *Directory, kind models.RecordKind, p models.Predicate,
	find func(context.Context, models.Predicate) ([]R, error)) ([]R, error) {

	key := buildKey(kind, p)
	if cached, ok := get[R](ctx, d, key); ok {
		return cached, nil
	}

	out, err := find(ctx, p)
	if err != nil {
		if errors.Is(err, store.ErrUnavailable) {
			if stale, ok := get[R](ctx, d, staleKey(key)); ok {
				d.logger.Warn("store unavailable, serving stale lookup",
					zap.String("kind", string(kind)),
					zap.Error(err),
				)
				return stale, nil
			}
		}
		return nil, err
	}

	data, err := json.Marshal(out)
	if err != nil {
		d.logger.Warn("cache marshal failed", zap.String("kind", string(kind)), zap.Error(err))
		return out, nil
	}
	if err := d.kv.Set(ctx, key, data, d.ttl.Lookups); err != nil {
		d.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		return out, nil
	}
	if err := d.kv.Set(ctx, staleKey(key), data, d.ttl.StaleFallback); err != nil {
		d.logger.Warn("cache stale set failed", zap.String("key", key), zap.Error(err))
	}
	return out, nil
}

func get[R any](ctx context.Context, d *Directory, key string) ([]R, bool) {
	val, ok, err := d.kv.Get(ctx, key)
	if err != nil {
		d.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !ok {
		observability.CacheMisses.Inc()
		return nil, false
	}
	var out []R
	if err := json.Unmarshal(val, &out); err != nil {
		d.logger.Warn("cache unmarshal failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	observability.CacheHits.Inc()
	return out, true
}

// Invalidate drops every cached lookup, fresh and stale.
func (d *Directory) Invalidate(ctx context.Context) (int, error) {
	n, err := d.kv.DeleteMatching(ctx, keyPrefix+"*")
	if err != nil {
		return n, fmt.Errorf("invalidating cache: %w", err)
	}
	d.logger.Info("cache invalidated", zap.Int("keys", n))
	return n, nil
}

func (d *Directory) HealthCheck(ctx context.Context) error {
	return d.kv.Ping(ctx)
}

func (d *Directory) Close() error {
	return d.kv.Close()
}

// buildKey derives the key from the predicate's canonical form, so the same
// conditions in any order share an entry.
func buildKey(kind models.RecordKind, p models.Predicate) string {
	return fmt.Sprintf("%s%s:%s", keyPrefix, kind, hashString(p.String()))
}

func staleKey(key string) string {
	return keyPrefix + "stale:" + key[len(keyPrefix):]
}

func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h[:8])
}
