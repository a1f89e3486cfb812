package cache

import (
	"time"

	"github.com/dgraph-io/ristretto"
)

// LRUCache is the in-process payload cache backed by ristretto, bounded by
// total byte cost and entry count. Graph payloads dominate the cost, so each
// entry is charged its serialized size.
type LRUCache struct {
	store      *ristretto.Cache
	defaultTTL time.Duration
}

// NewLRU builds a cache capped at maxSizeMB megabytes and roughly maxEntries
// entries; entries set with a zero TTL expire after defaultTTL.
func NewLRU(maxSizeMB int64, maxEntries int64, defaultTTL time.Duration) (*LRUCache, error) {
	// ristretto wants ~10x counters per tracked entry for its admission policy
	counters := maxEntries * 10
	if counters < 1000 {
		counters = 1000
	}
	store, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: counters,
		MaxCost:     maxSizeMB << 20,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}
	return &LRUCache{store: store, defaultTTL: defaultTTL}, nil
}

// Get returns the cached bytes for key, or false when absent or expired.
func (c *LRUCache) Get(key string) ([]byte, bool) {
	val, found := c.store.Get(key)
	if !found {
		return nil, false
	}
	data, ok := val.([]byte)
	if !ok {
		c.store.Del(key)
		return nil, false
	}
	return data, true
}

// Set stores value under key. A zero ttl means the cache default. The write
// is flushed through ristretto's buffers before returning so a Get right
// after a Set observes the value.
func (c *LRUCache) Set(key string, value []byte, ttl time.Duration) {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	c.store.SetWithTTL(key, value, int64(len(value)), ttl)
	c.store.Wait()
}

// Delete drops a single key; used to invalidate a graph payload after a
// layout run rewrites its positions.
func (c *LRUCache) Delete(key string) {
	c.store.Del(key)
}

// Clear empties the cache.
func (c *LRUCache) Clear() {
	c.store.Clear()
}

// Stats reports ristretto's counters. Size and Items are running totals of
// adds minus evictions, so they are approximations under concurrency.
func (c *LRUCache) Stats() Stats {
	m := c.store.Metrics
	return Stats{
		Hits:      m.Hits(),
		Misses:    m.Misses(),
		KeysAdded: m.KeysAdded(),
		Evictions: m.KeysEvicted(),
		Size:      int64(m.CostAdded() - m.CostEvicted()),
		Items:     int64(m.KeysAdded() - m.KeysEvicted()),
	}
}

// Close releases the cache's goroutines.
func (c *LRUCache) Close() {
	c.store.Close()
}
