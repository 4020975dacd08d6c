package analysis

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/kalambet/reviewlens/internal/metrics"
)

// DefaultCacheSize is the number of analyses kept when no size is configured.
const DefaultCacheSize = 50

// ComputeFunc produces the analysis for a cache miss.
type ComputeFunc func(ctx context.Context) (*Result, error)

// Cache is a bounded LRU of analysis results with single-flight computation:
// concurrent misses for the same key share one ComputeFunc invocation.
// Errors are returned to every waiter and never stored, and neither is the
// result of a flight that was running when Purge was called.
type Cache struct {
	entries *lru.Cache[string, *Result]
	flights singleflight.Group

	mu    sync.Mutex
	epoch uint64 // bumped by Purge

	onMiss func(key string) // test hook, called after a lookup misses
}

// NewCache creates a Cache holding at most size results.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, *Result](size)
	if err != nil {
		return nil, fmt.Errorf("creating analysis cache: %w", err)
	}
	return &Cache{entries: entries}, nil
}

// Epoch identifies the cache contents between two Purge calls. Read it before
// looking up whatever data compute will read, and pass it to GetOrCompute.
func (c *Cache) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// GetOrCompute returns the cached result for key, or runs compute once for
// all concurrent callers of the same key. The computation runs detached from
// ctx cancellation; a caller whose ctx ends stops waiting with ctx.Err()
// while the result is still cached for later requests. The result is stored
// only if no Purge happened since epoch. hit reports whether the result came
// from the cache without waiting on a flight.
func (c *Cache) GetOrCompute(ctx context.Context, epoch uint64, key string, compute ComputeFunc) (res *Result, hit bool, err error) {
	if r, ok := c.entries.Get(key); ok {
		metrics.CacheRequests.WithLabelValues("hit").Inc()
		return r, true, nil
	}
	metrics.CacheRequests.WithLabelValues("miss").Inc()
	if c.onMiss != nil {
		c.onMiss(key)
	}

	flightCtx := context.WithoutCancel(ctx)
	ch := c.flights.DoChan(key, func() (any, error) {
		// A flight for this key may have finished between the lookup above
		// and joining this one.
		if r, ok := c.entries.Get(key); ok {
			return r, nil
		}
		r, err := compute(flightCtx)
		if err != nil {
			return nil, err
		}
		c.store(epoch, key, r)
		return r, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case out := <-ch:
		if out.Err != nil {
			return nil, false, out.Err
		}
		return out.Val.(*Result), false, nil
	}
}

// store adds r unless the cache was purged since epoch was read.
func (c *Cache) store(epoch uint64, key string, r *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return
	}
	c.entries.Add(key, r)
	metrics.CacheEntries.Set(float64(c.entries.Len()))
}

// Len returns the number of cached results.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Purge drops every cached result. Flights already running still deliver
// their result to their waiters but do not store it.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.entries.Purge()
	metrics.CacheEntries.Set(0)
}
