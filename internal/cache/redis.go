package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/web3-frozen/yield-optimizer/internal/metrics"
)

// Redis is a Store backed by a Redis server, shared across replicas.
type Redis struct {
	rdb    *redis.Client
	prefix string
}

// NewRedis connects to redisURL and verifies the connection with a ping.
func NewRedis(redisURL, password string) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	if password != "" {
		opts.Password = password
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return &Redis{rdb: rdb, prefix: "yield-optimizer:"}, nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		result := "error"
		if errors.Is(err, redis.Nil) {
			result = "miss"
		}
		metrics.CacheLookupsTotal.WithLabelValues("redis", result).Inc()
		return nil, false
	}
	metrics.CacheLookupsTotal.WithLabelValues("redis", "hit").Inc()
	return val, true
}

// Set stores val for ttl. A zero ttl keeps the key until it is deleted.
func (r *Redis) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return r.rdb.Set(ctx, r.prefix+key, val, ttl).Err()
}

func (r *Redis) Delete(ctx context.Context, key string) {
	r.rdb.Del(ctx, r.prefix+key) //nolint:errcheck
}

// DeletePrefix removes every key starting with prefix.
func (r *Redis) DeletePrefix(ctx context.Context, prefix string) error {
	iter := r.rdb.Scan(ctx, 0, r.prefix+prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := r.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
