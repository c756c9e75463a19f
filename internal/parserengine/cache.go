package parserengine

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheBytes is the default byte budget for the content-hash
// cache (spec.md §4.1: "default 256 MB, configurable").
const DefaultCacheBytes = 256 * 1024 * 1024

// maxCacheEntries bounds the underlying LRU's entry count generously;
// evictIfNeeded is what actually governs eviction in practice, the same
// split internal/semantic.Cache uses around its own golang-lru/v2
// instance (an entry-count ceiling plus a manual byte-budget sweep).
const maxCacheEntries = 100_000

type cacheKey struct {
	filePath    string
	contentHash string
}

type cacheEntry struct {
	result *ParseResult
	size   int64
}

// resultCache is an LRU of ParseResults keyed by (filePath,
// contentHash), bounded by an approximate byte budget rather than an
// entry count — large files evict more of the cache than small ones.
// Built on hashicorp/golang-lru/v2, the same library
// internal/semantic.Cache wraps for its own byte-bounded query cache
// (internal/semantic/cache.go), rather than a hand-rolled container/list
// ring.
type resultCache struct {
	mu       sync.Mutex
	maxBytes int64
	curBytes int64
	lru      *lru.Cache[cacheKey, *cacheEntry]
	hits     int64
	misses   int64
}

func newResultCache(maxBytes int64) *resultCache {
	if maxBytes <= 0 {
		maxBytes = DefaultCacheBytes
	}
	c := &resultCache{maxBytes: maxBytes}
	l, err := lru.NewWithEvict[cacheKey, *cacheEntry](maxCacheEntries, func(_ cacheKey, e *cacheEntry) {
		c.curBytes -= e.size
	})
	if err != nil {
		// Only returns an error for a non-positive size, which
		// maxCacheEntries never is.
		panic(err)
	}
	c.lru = l
	return c
}

func (c *resultCache) get(filePath, contentHash string) (*ParseResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey{filePath, contentHash}
	entry, ok := c.lru.Get(key)
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	return entry.result, true
}

func (c *resultCache) put(filePath, contentHash string, result *ParseResult, approxBytes int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey{filePath, contentHash}
	if old, ok := c.lru.Peek(key); ok {
		c.curBytes -= old.size
	}
	c.lru.Add(key, &cacheEntry{result: result, size: approxBytes})
	c.curBytes += approxBytes
	c.evictIfNeeded()
}

// invalidateFile removes every cached result for a given file path,
// regardless of content hash — used when a file is deleted.
func (c *resultCache) invalidateFile(filePath string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range c.lru.Keys() {
		if key.filePath == filePath {
			c.lru.Remove(key)
		}
	}
}

// clear discards every cached entry.
func (c *resultCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Purge()
	c.curBytes = 0
}

func (c *resultCache) evictIfNeeded() {
	for c.curBytes > c.maxBytes && c.lru.Len() > 0 {
		c.lru.RemoveOldest()
	}
}

// hitRate returns the fraction of get() calls that were cache hits,
// used to validate spec.md §8's "cache hit rate on warm restart ≥80%"
// property.
func (c *resultCache) hitRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total)
}

func approxResultSize(r *ParseResult) int64 {
	size := int64(len(r.FilePath) + len(r.Language) + len(r.ContentHash))
	for _, e := range r.Entities {
		size += int64(len(e.ID) + len(e.Name) + len(e.Type) + len(e.FilePath) + len(e.ContentHash) + 64)
	}
	for _, rel := range r.Relationships {
		size += int64(len(rel.ID) + len(rel.FromID) + len(rel.ToID) + len(rel.Metadata.Context) + 32)
	}
	return size
}
