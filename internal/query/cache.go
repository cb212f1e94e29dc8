package query

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key identifies a cached query. The first part names the resource and is
// what invalidation matches on.
type Key []string

// String renders the key as "resource|part|part". A bare resource key keeps
// the trailing separator so prefix invalidation still matches it.
func (k Key) String() string {
	if len(k) == 1 {
		return k[0] + "|"
	}
	return strings.Join(k, "|")
}

// Resource returns the leading part of the key.
func (k Key) Resource() string {
	if len(k) == 0 {
		return ""
	}
	return k[0]
}

// Cache stores encoded query results.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// sweepInterval spaces out the scans that drop expired entries nobody reads.
const sweepInterval = time.Minute

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu        sync.Mutex
	items     map[string]memoryEntry
	now       func() time.Time
	nextSweep time.Time
}

type memoryEntry struct {
	val     []byte
	expires time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: map[string]memoryEntry{}, now: time.Now}
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.items, key)
		return nil, false, nil
	}
	return e.val, true, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if !now.Before(m.nextSweep) {
		for k, e := range m.items {
			if !e.expires.IsZero() && !now.Before(e.expires) {
				delete(m.items, k)
			}
		}
		m.nextSweep = now.Add(sweepInterval)
	}
	e := memoryEntry{val: val}
	if ttl > 0 {
		e.expires = now.Add(ttl)
	}
	m.items[key] = e
	return nil
}

func (m *MemoryCache) DeletePrefix(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.items {
		if strings.HasPrefix(k, prefix) {
			delete(m.items, k)
		}
	}
	return nil
}

const redisPrefix = "schoolhub:query:"

// RedisCache shares query results between gateway replicas.
type RedisCache struct {
	rdb *redis.Client
}

func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.rdb.Get(ctx, redisPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return r.rdb.Set(ctx, redisPrefix+key, val, ttl).Err()
}

// DeletePrefix walks matching keys with SCAN so large keyspaces never block Redis.
func (r *RedisCache) DeletePrefix(ctx context.Context, prefix string) error {
	iter := r.rdb.Scan(ctx, 0, redisPrefix+prefix+"*", 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			if err := r.rdb.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return r.rdb.Del(ctx, batch...).Err()
	}
	return nil
}
