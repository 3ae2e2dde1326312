// Package cache holds the LRU cache the archive reader keeps parsed
// sequences in.
package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
)

type entry[K comparable, V any] struct {
	key   K
	value V
}

// LRU is a fixed-capacity least-recently-used cache, safe for concurrent use.
// A capacity <= 0 disables caching: Put is a no-op and Get always misses.
type LRU[K comparable, V any] struct {
	mu        sync.Mutex
	capacity  int
	order     *list.List
	items     map[K]*list.Element
	onEvicted func(K, V)

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewLRU creates a cache holding up to capacity items. onEvicted, when not
// nil, is called with every item removed by eviction or Clear.
func NewLRU[K comparable, V any](capacity int, onEvicted func(K, V)) *LRU[K, V] {
	return &LRU[K, V]{
		capacity:  capacity,
		order:     list.New(),
		items:     make(map[K]*list.Element),
		onEvicted: onEvicted,
	}
}

// Get returns the cached value for key and marks it recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.hits.Add(1)
		c.order.MoveToFront(elem)
		return elem.Value.(*entry[K, V]).value, true
	}
	c.misses.Add(1)
	var zero V
	return zero, false
}

// Put stores value under key, evicting the least recently used item when full.
func (c *LRU[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.capacity <= 0 {
		return
	}
	if elem, ok := c.items[key]; ok {
		c.order.MoveToFront(elem)
		elem.Value.(*entry[K, V]).value = value
		return
	}
	if c.order.Len() >= c.capacity {
		c.evict()
	}
	c.items[key] = c.order.PushFront(&entry[K, V]{key: key, value: value})
}

// must be called with c.mu held
func (c *LRU[K, V]) evict() {
	elem := c.order.Back()
	if elem == nil {
		return
	}
	e := c.order.Remove(elem).(*entry[K, V])
	delete(c.items, e.key)
	if c.onEvicted != nil {
		c.onEvicted(e.key, e.value)
	}
}

// Len returns the number of cached items.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Clear drops every item and resets the hit counters.
func (c *LRU[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.onEvicted != nil {
		for elem := c.order.Back(); elem != nil; elem = elem.Prev() {
			e := elem.Value.(*entry[K, V])
			c.onEvicted(e.key, e.value)
		}
	}
	c.order.Init()
	c.items = make(map[K]*list.Element)
	c.hits.Store(0)
	c.misses.Store(0)
}

// Stats returns the hit and miss counts since creation or the last Clear.
func (c *LRU[K, V]) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

// HitRate returns hits / (hits + misses), or 0 before the first lookup.
func (c *LRU[K, V]) HitRate() float64 {
	hits, misses := c.Stats()
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}
