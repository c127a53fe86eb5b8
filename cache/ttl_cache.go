// Copyright (C) 2025, Veilex Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package cache provides the read cache used by the protocol client. Chain
// state is authoritative; cached values only bridge the gap between reads
// and must be invalidated once a state-mutating transaction confirms.
package cache

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type entry[V any] struct {
	value     V
	fetchedAt time.Time
}

// TTLCache caches fetched values with a per-key TTL and single-flight
// deduplication of concurrent fetches for the same key.
type TTLCache[K comparable, V any] struct {
	data    map[K]entry[V]
	ttl     time.Duration
	lock    sync.RWMutex
	sfGroup singleflight.Group
}

func NewTTLCache[K comparable, V any](ttl time.Duration) *TTLCache[K, V] {
	return &TTLCache[K, V]{
		data: make(map[K]entry[V]),
		ttl:  ttl,
	}
}

// Get returns the cached value for key if it is still fresh, otherwise
// fetches it with fetchFunc and caches the result. Concurrent fetches for
// the same key are deduplicated and share one return value.
func (c *TTLCache[K, V]) Get(key K, fetchFunc func(K) (V, error)) (V, error) {
	c.lock.RLock()
	e, exists := c.data[key]
	c.lock.RUnlock()
	if exists && time.Since(e.fetchedAt) < c.ttl {
		return e.value, nil
	}

	v, err, _ := c.sfGroup.Do(keyToString(key), func() (interface{}, error) {
		newValue, fetchErr := fetchFunc(key)
		if fetchErr != nil {
			return *new(V), fetchErr
		}

		c.lock.Lock()
		c.data[key] = entry[V]{
			value:     newValue,
			fetchedAt: time.Now(),
		}
		c.lock.Unlock()

		return newValue, nil
	})

	if err != nil {
		return *new(V), err
	}
	return v.(V), nil
}

// Invalidate drops the cached value for key. The entry is deleted rather
// than overwritten so no reader can observe a stale value while the next
// fetch is in flight.
func (c *TTLCache[K, V]) Invalidate(key K) {
	c.lock.Lock()
	delete(c.data, key)
	c.lock.Unlock()
}

// keyToString allows both fmt.Stringer and primitive key types.
func keyToString[K comparable](key K) string {
	if s, ok := any(key).(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", key)
}
