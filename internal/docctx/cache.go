package docctx

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// memoCache is a concurrent insert-if-absent map. Concurrent misses on the
// same key are coalesced through singleflight so an external call happens at
// most once per key, even under concurrent module execution.
type memoCache[V any] struct {
	mu     sync.RWMutex
	values map[string]V
	group  singleflight.Group
}

func newMemoCache[V any]() *memoCache[V] {
	return &memoCache[V]{values: make(map[string]V)}
}

// Get returns the cached value for key, if present.
func (c *memoCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// GetOrCompute returns the cached value for key, computing and storing it on
// miss. The second caller for an in-flight key waits for the first's result
// instead of issuing its own computation. Failed computations are not
// cached, so a later caller may retry.
func (c *memoCache[V]) GetOrCompute(ctx context.Context, key string, compute func(ctx context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	result, err, _ := c.group.Do(key, func() (any, error) {
		// Double-check: the value may have landed between the miss and the
		// singleflight slot being acquired.
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.values[key] = v
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return result.(V), nil
}

// Put stores a value unconditionally.
func (c *memoCache[V]) Put(key string, v V) {
	c.mu.Lock()
	c.values[key] = v
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *memoCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}
