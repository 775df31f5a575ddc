package suggest

import (
	"sync"
	"time"
)

// Cache stores suggestion results keyed by data source and context. It is
// injected into the suggestion client rather than held as ambient state so
// eviction behavior is testable.
type Cache interface {
	Get(key string) ([]KpiSuggestion, bool)
	Set(key string, value []KpiSuggestion)
	Evict(key string)
}

type cacheEntry struct {
	value     []KpiSuggestion
	expiresAt time.Time
}

// MemoryCache is a fixed-capacity TTL cache. When full, the oldest entry is
// evicted to make room.
type MemoryCache struct {
	mu       sync.Mutex
	entries  map[string]cacheEntry
	order    []string
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

// DefaultCacheTTL bounds how long a suggestion result is reused
const DefaultCacheTTL = 30 * time.Minute

// DefaultCacheCapacity bounds how many distinct keys are retained
const DefaultCacheCapacity = 128

// NewMemoryCache creates a cache with the given capacity and TTL. Zero
// values select the defaults.
func NewMemoryCache(capacity int, ttl time.Duration) *MemoryCache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &MemoryCache{
		entries:  make(map[string]cacheEntry),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns the cached value for key if present and unexpired
func (c *MemoryCache) Get(key string) ([]KpiSuggestion, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		c.remove(key)
		return nil, false
	}
	return entry.value, true
}

// Set stores value under key, evicting the oldest entry when at capacity
func (c *MemoryCache) Set(key string, value []KpiSuggestion) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		for len(c.entries) >= c.capacity && len(c.order) > 0 {
			c.remove(c.order[0])
		}
		c.order = append(c.order, key)
	}

	c.entries[key] = cacheEntry{
		value:     value,
		expiresAt: c.now().Add(c.ttl),
	}
}

// Evict removes key from the cache
func (c *MemoryCache) Evict(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remove(key)
}

// remove deletes key from both the map and the insertion order list.
// Caller holds the lock.
func (c *MemoryCache) remove(key string) {
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of live entries
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
