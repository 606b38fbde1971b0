// Package lru implements a generic, thread-safe LRU cache whose entries also
// expire after a period of inactivity. Conversation sessions live in it.
package lru

import (
	"context"
	"sync"
	"time"
)

// EvictReason tells why an entry left the cache.
type EvictReason int

const (
	// EvictedCapacity means the entry was the least recently used one when a
	// new key arrived at full capacity.
	EvictedCapacity EvictReason = iota
	// EvictedIdle means the entry was not touched for longer than the idle TTL.
	EvictedIdle
)

func (r EvictReason) String() string {
	if r == EvictedIdle {
		return "idle"
	}
	return "capacity"
}

type entry[K comparable, V any] struct {
	key      K
	val      V
	lastUsed time.Time
	prev     *entry[K, V]
	next     *entry[K, V]
}

// Options configures a Cache.
type Options[K comparable, V any] struct {
	Capacity int
	// IdleTTL expires entries not accessed for that long. Zero disables it.
	IdleTTL time.Duration
	// OnEvict runs after an entry is dropped for capacity or idleness, outside
	// the cache lock. Delete does not call it.
	OnEvict func(key K, val V, reason EvictReason)
	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// Cache is a generic, thread-safe LRU cache.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	opts    Options[K, V]
	items   map[K]*entry[K, V]
	root    entry[K, V] // sentinel: root.next is most recent, root.prev least
	janitor sync.WaitGroup
}

// New creates a cache. Panics if capacity < 1.
func New[K comparable, V any](opts Options[K, V]) *Cache[K, V] {
	if opts.Capacity < 1 {
		panic("lru: capacity must be >= 1")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	c := &Cache[K, V]{
		opts:  opts,
		items: make(map[K]*entry[K, V], opts.Capacity),
	}
	c.root.next = &c.root
	c.root.prev = &c.root
	return c
}

type evicted[K comparable, V any] struct {
	key    K
	val    V
	reason EvictReason
}

func (c *Cache[K, V]) notify(out []evicted[K, V]) {
	if c.opts.OnEvict == nil {
		return
	}
	for _, e := range out {
		c.opts.OnEvict(e.key, e.val, e.reason)
	}
}

func (c *Cache[K, V]) expired(e *entry[K, V], now time.Time) bool {
	return c.opts.IdleTTL > 0 && now.Sub(e.lastUsed) > c.opts.IdleTTL
}

// Get returns the value for key and marks it recently used. An idle-expired
// entry is dropped and reported as missing.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	var zero V
	c.mu.Lock()
	e, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		return zero, false
	}
	now := c.opts.Now()
	if c.expired(e, now) {
		c.unlink(e)
		c.mu.Unlock()
		c.notify([]evicted[K, V]{{e.key, e.val, EvictedIdle}})
		return zero, false
	}
	e.lastUsed = now
	c.moveToFront(e)
	val := e.val
	c.mu.Unlock()
	return val, true
}

// Put inserts or replaces key. At capacity the least recently used entry is
// evicted.
func (c *Cache[K, V]) Put(key K, val V) {
	c.mu.Lock()
	now := c.opts.Now()
	if e, ok := c.items[key]; ok {
		e.val = val
		e.lastUsed = now
		c.moveToFront(e)
		c.mu.Unlock()
		return
	}

	var out []evicted[K, V]
	if len(c.items) >= c.opts.Capacity {
		victim := c.root.prev
		c.unlink(victim)
		out = append(out, evicted[K, V]{victim.key, victim.val, EvictedCapacity})
	}
	e := &entry[K, V]{key: key, val: val, lastUsed: now}
	c.items[key] = e
	c.pushFront(e)
	c.mu.Unlock()
	c.notify(out)
}

// Delete removes key without calling OnEvict. It reports whether it existed.
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.items[key]
	if !ok {
		return false
	}
	c.unlink(e)
	return true
}

// Len returns the number of entries, expired ones included until swept.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Keys returns all keys from most to least recently used.
func (c *Cache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]K, 0, len(c.items))
	for cur := c.root.next; cur != &c.root; cur = cur.next {
		keys = append(keys, cur.key)
	}
	return keys
}

// Sweep drops every idle-expired entry and returns how many went. Entries
// are ordered by last use, so the scan stops at the first live one.
func (c *Cache[K, V]) Sweep() int {
	if c.opts.IdleTTL <= 0 {
		return 0
	}
	c.mu.Lock()
	now := c.opts.Now()
	var out []evicted[K, V]
	for cur := c.root.prev; cur != &c.root && c.expired(cur, now); cur = c.root.prev {
		c.unlink(cur)
		out = append(out, evicted[K, V]{cur.key, cur.val, EvictedIdle})
	}
	c.mu.Unlock()
	c.notify(out)
	return len(out)
}

// StartJanitor sweeps every interval until ctx is done. Wait blocks until the
// janitor has exited.
func (c *Cache[K, V]) StartJanitor(ctx context.Context, interval time.Duration) {
	c.janitor.Add(1)
	go func() {
		defer c.janitor.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Sweep()
			}
		}
	}()
}

// Wait blocks until every janitor started on c has returned.
func (c *Cache[K, V]) Wait() {
	c.janitor.Wait()
}

func (c *Cache[K, V]) pushFront(e *entry[K, V]) {
	e.prev = &c.root
	e.next = c.root.next
	c.root.next.prev = e
	c.root.next = e
}

func (c *Cache[K, V]) moveToFront(e *entry[K, V]) {
	if c.root.next == e {
		return
	}
	e.prev.next = e.next
	e.next.prev = e.prev
	c.pushFront(e)
}

func (c *Cache[K, V]) unlink(e *entry[K, V]) {
	e.prev.next = e.next
	e.next.prev = e.prev
	e.prev, e.next = nil, nil
	delete(c.items, e.key)
}
