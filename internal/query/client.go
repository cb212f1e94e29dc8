package query

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"schoolhub/internal/metrics"
)

// Client serves query results from the cache while they are fresh and
// refetches otherwise. Mutations never patch cached data: they call
// Invalidate and the next read goes to the backend.
type Client struct {
	cache     Cache
	staleTime time.Duration
	log       *zap.Logger
}

func NewClient(cache Cache, staleTime time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{cache: cache, staleTime: staleTime, log: log}
}

// Fetch returns the cached value for key while it is fresh, or runs fn and
// caches its result.
func Fetch[T any](ctx context.Context, c *Client, key Key, fn func(context.Context) (T, error)) (T, error) {
	var out T
	k := key.String()
	if c.staleTime > 0 {
		raw, ok, err := c.cache.Get(ctx, k)
		if err != nil {
			c.log.Warn("query cache get", zap.String("key", k), zap.Error(err))
		} else if ok {
			if err := json.Unmarshal(raw, &out); err == nil {
				metrics.CacheLookups.WithLabelValues(key.Resource(), "hit").Inc()
				return out, nil
			}
			c.log.Warn("query cache entry unreadable", zap.String("key", k))
		}
	}
	metrics.CacheLookups.WithLabelValues(key.Resource(), "miss").Inc()

	out, err := fn(ctx)
	if err != nil {
		return out, err
	}
	if c.staleTime > 0 {
		raw, err := json.Marshal(out)
		if err != nil {
			return out, fmt.Errorf("encode %s: %w", k, err)
		}
		if err := c.cache.Set(ctx, k, raw, c.staleTime); err != nil {
			c.log.Warn("query cache set", zap.String("key", k), zap.Error(err))
		}
	}
	return out, nil
}

// Invalidate drops every cached query of the given resources.
func (c *Client) Invalidate(ctx context.Context, resources ...string) {
	for _, r := range resources {
		if err := c.cache.DeletePrefix(ctx, r+"|"); err != nil {
			c.log.Warn("query cache invalidate", zap.String("resource", r), zap.Error(err))
		}
	}
}
