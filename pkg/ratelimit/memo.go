package ratelimit

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Memo caches the successful results of fn by argument. Entries are never
// evicted and live as long as the Memo. Failed calls are not cached, so a
// later Get with the same key calls fn again.
type Memo[K comparable, V any] struct {
	fn    func(context.Context, K) (V, error)
	mu    sync.RWMutex
	cache map[K]V
	group singleflight.Group
}

// NewMemo creates a Memo around fn
func NewMemo[K comparable, V any](fn func(context.Context, K) (V, error)) *Memo[K, V] {
	return &Memo[K, V]{
		fn:    fn,
		cache: make(map[K]V),
	}
}

// Get returns the cached value for key, calling fn on a miss. Concurrent
// misses for the same key share a single call, which runs with the ctx of
// the caller that started it.
func (m *Memo[K, V]) Get(ctx context.Context, key K) (V, error) {
	if v, ok := m.lookup(key); ok {
		return v, nil
	}

	res, err, _ := m.group.Do(fmt.Sprintf("%#v", key), func() (interface{}, error) {
		if v, ok := m.lookup(key); ok {
			return v, nil
		}
		v, err := m.fn(ctx, key)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.cache[key] = v
		m.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}

	v, _ := res.(V)
	return v, nil
}

// Len returns the number of cached entries
func (m *Memo[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.cache)
}

func (m *Memo[K, V]) lookup(key K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.cache[key]
	return v, ok
}
