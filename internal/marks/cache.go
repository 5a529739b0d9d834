package marks

import (
	"container/list"
	"fmt"
	"sync"
	"sync/atomic"
)

// Cache is a shared LRU of mark loaders keyed by part + stream + width.
// Multiple readers pulling the same part concurrently share one loader, so
// each mark file is read at most once while resident.
//
// Eviction only drops the cache's reference; readers holding a loader keep
// using it.
type Cache struct {
	mu       sync.Mutex
	maxBytes int64
	curBytes int64

	// items maps cache key → list element (whose value is *cacheEntry)
	items map[string]*list.Element
	order *list.List // front = most recently used

	hits   atomic.Int64
	misses atomic.Int64
}

type cacheEntry struct {
	key    string
	loader *Loader
}

// NewCache creates a mark cache with the given byte budget for decoded mark
// slabs. maxBytes <= 0 selects a 128 MiB default.
func NewCache(maxBytes int64) *Cache {
	if maxBytes <= 0 {
		maxBytes = 128 * 1024 * 1024
	}
	return &Cache{
		maxBytes: maxBytes,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Key builds the canonical cache key for a part's stream.
func Key(partName, stream string, width int) string {
	return fmt.Sprintf("%s/%s/%d", partName, stream, width)
}

// GetOrCreate returns the cached loader for key, or installs the one
// produced by create. The returned loader is shared; its lazy load is
// serialized by the loader itself.
func (c *Cache) GetOrCreate(key string, create func() *Loader) *Loader {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.order.MoveToFront(elem)
		c.hits.Add(1)
		return elem.Value.(*cacheEntry).loader
	}

	c.misses.Add(1)
	loader := create()
	elem := c.order.PushFront(&cacheEntry{key: key, loader: loader})
	c.items[key] = elem
	c.curBytes += loader.SizeBytes()

	for c.curBytes > c.maxBytes && c.order.Len() > 1 {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest)
	}

	return loader
}

// Stats returns hit and miss counts.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Len returns the number of resident loaders.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// SizeBytes returns the accounted size of resident mark slabs.
func (c *Cache) SizeBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.curBytes
}

func (c *Cache) removeLocked(elem *list.Element) {
	entry := elem.Value.(*cacheEntry)
	c.order.Remove(elem)
	delete(c.items, entry.key)
	c.curBytes -= entry.loader.SizeBytes()
}
