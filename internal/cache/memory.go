package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/web3-frozen/yield-optimizer/internal/metrics"
)

// Memory is an in-process Store used when no Redis is configured.
type Memory struct {
	c *ristretto.Cache
}

// NewMemory creates a cache bounded to roughly maxBytes of values.
func NewMemory(maxBytes int64) (*Memory, error) {
	if maxBytes <= 0 {
		maxBytes = 64 << 20
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Memory{c: c}, nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	v, ok := m.c.Get(key)
	if !ok {
		metrics.CacheLookupsTotal.WithLabelValues("memory", "miss").Inc()
		return nil, false
	}
	b, ok := v.([]byte)
	if !ok {
		metrics.CacheLookupsTotal.WithLabelValues("memory", "error").Inc()
		return nil, false
	}
	metrics.CacheLookupsTotal.WithLabelValues("memory", "hit").Inc()
	return b, true
}

// Set writes synchronously, so a Get right after Set observes the value.
// A value dropped by the set buffer or refused by the admission policy
// yields ErrRejected.
func (m *Memory) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	cp := make([]byte, len(val))
	copy(cp, val)
	var ok bool
	if ttl > 0 {
		ok = m.c.SetWithTTL(key, cp, int64(len(cp)), ttl)
	} else {
		ok = m.c.Set(key, cp, int64(len(cp)))
	}
	if !ok {
		metrics.CacheLookupsTotal.WithLabelValues("memory", "rejected").Inc()
		return fmt.Errorf("set %s: %w", key, ErrRejected)
	}
	m.c.Wait()
	if _, stored := m.c.Get(key); !stored {
		metrics.CacheLookupsTotal.WithLabelValues("memory", "rejected").Inc()
		return fmt.Errorf("set %s: %w", key, ErrRejected)
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) {
	m.c.Del(key)
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error {
	m.c.Close()
	return nil
}
