// internal/cache/lru.go
//
// Small, mutex-guarded LRU used by the view engine (parsed template sets) and
// the form session store.  No external deps; good for a few thousand entries.
//
// Notes
// -----
// • OnEvict runs outside the lock so callbacks may call back into the cache.
// • Oxford commas, two spaces after periods.
package cache

import (
	"container/list"
	"sync"
)

// LRU is a least-recently-used cache keyed by K.  Safe for concurrent use.
type LRU[K comparable, V any] struct {
	mu      sync.Mutex
	cap     int
	ll      *list.List
	dict    map[K]*list.Element
	onEvict func(K, V)
}

type pair[K comparable, V any] struct {
	key K
	val V
}

// New returns an LRU with the given capacity.  Panics on capacity < 1.
func New[K comparable, V any](capacity int) *LRU[K, V] {
	if capacity < 1 {
		panic("cache: capacity must be ≥1")
	}
	return &LRU[K, V]{
		cap:  capacity,
		ll:   list.New(),
		dict: make(map[K]*list.Element, capacity),
	}
}

// OnEvict installs fn, called for every entry pushed out by capacity
// pressure or removed with Remove.
func (c *LRU[K, V]) OnEvict(fn func(K, V)) {
	c.mu.Lock()
	c.onEvict = fn
	c.mu.Unlock()
}

// Get retrieves a value and marks it MRU.
func (c *LRU[K, V]) Get(key K) (val V, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ele, hit := c.dict[key]; hit {
		c.ll.MoveToFront(ele)
		return ele.Value.(pair[K, V]).val, true
	}
	return val, false
}

// Add inserts or updates a value.
func (c *LRU[K, V]) Add(key K, val V) {
	c.mu.Lock()
	if ele, hit := c.dict[key]; hit {
		ele.Value = pair[K, V]{key, val}
		c.ll.MoveToFront(ele)
		c.mu.Unlock()
		return
	}
	ele := c.ll.PushFront(pair[K, V]{key, val})
	c.dict[key] = ele

	var evicted []pair[K, V]
	for c.ll.Len() > c.cap {
		last := c.ll.Back()
		c.ll.Remove(last)
		p := last.Value.(pair[K, V])
		delete(c.dict, p.key)
		evicted = append(evicted, p)
	}
	fn := c.onEvict
	c.mu.Unlock()

	if fn != nil {
		for _, p := range evicted {
			fn(p.key, p.val)
		}
	}
}

// Remove deletes key and reports whether it was present.
func (c *LRU[K, V]) Remove(key K) bool {
	c.mu.Lock()
	ele, hit := c.dict[key]
	if !hit {
		c.mu.Unlock()
		return false
	}
	c.ll.Remove(ele)
	delete(c.dict, key)
	p := ele.Value.(pair[K, V])
	fn := c.onEvict
	c.mu.Unlock()

	if fn != nil {
		fn(p.key, p.val)
	}
	return true
}

// Each calls fn for every entry from MRU to LRU without touching recency.
// fn must not call back into the cache.
func (c *LRU[K, V]) Each(fn func(K, V)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for e := c.ll.Front(); e != nil; e = e.Next() {
		p := e.Value.(pair[K, V])
		fn(p.key, p.val)
	}
}

// Len reports current size.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
