// Package cache provides a read-through cache for expensive, deterministic
// computations such as daily candle loads and gap statistics.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Store is a byte-oriented key/value store with per-entry expiry.
type Store interface {
	// Get returns the value and true, or false when the key is absent or expired.
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Close() error
}

// ComputeFunc produces the value for a key on a miss.
type ComputeFunc func(ctx context.Context) ([]byte, error)

// Cache wraps a Store with get-or-compute semantics. Concurrent misses on the
// same key share one computation.
type Cache struct {
	store   Store
	logger  *zap.Logger
	metrics *Metrics
	flight  singleflight.Group
}

// New creates a cache over store. metrics may be nil.
func New(store Store, logger *zap.Logger, metrics *Metrics) *Cache {
	return &Cache{store: store, logger: logger, metrics: metrics}
}

// GetOrCompute returns the cached bytes for key, or runs fn, stores its
// result for ttl and returns it. A hit returns exactly the bytes stored on
// the miss. Store failures are logged and degrade to computing.
//
// The shared computation ignores caller cancellation. A cancelled caller
// stops waiting and returns ctx.Err(); the others still get the value.
func (c *Cache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, fn ComputeFunc) ([]byte, error) {
	if value, ok, err := c.store.Get(key); err != nil {
		c.logger.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		c.metrics.hit()
		return value, nil
	}
	c.metrics.miss()

	detached := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(key, func() (interface{}, error) {
		value, err := fn(detached)
		if err != nil {
			return nil, err
		}
		if err := c.store.Set(key, value, ttl); err != nil {
			c.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
		}
		return value, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate drops key so the next read recomputes it.
func (c *Cache) Invalidate(key string) error {
	if err := c.store.Delete(key); err != nil {
		return fmt.Errorf("failed to invalidate %q: %w", key, err)
	}
	return nil
}

// Close releases the underlying store.
func (c *Cache) Close() error {
	return c.store.Close()
}

// Fetch is GetOrCompute for JSON-serializable values.
func Fetch[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	raw, err := c.GetOrCompute(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		value, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(value)
	})
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("failed to decode cached %q: %w", key, err)
	}
	return out, nil
}
