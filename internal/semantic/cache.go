// Package semantic is the Semantic Cache & Hybrid Ranker (spec.md
// §4.4): a query→ranked-results cache with TTL and LRU eviction, plus
// the additive structural-boost reranker. Grounded on
// smartramana-developer-mesh's MultiLevelCache
// (internal/cache/multilevel_cache.go), which wraps
// hashicorp/golang-lru/v2 with its own TTL and size bookkeeping;
// rebuilt here as a single-level (in-process) cache since there is no
// L2/Redis tier in this spec.
package semantic

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultTTL is spec.md §4.4's "TTL default 10 min".
const DefaultTTL = 10 * time.Minute

// DefaultMaxEntries bounds the cache by entry count; DefaultMaxBytes
// additionally bounds it by approximate serialized size, so a handful
// of huge result sets can't crowd out everything else.
const (
	DefaultMaxEntries = 500
	DefaultMaxBytes   = 32 * 1024 * 1024
)

// RankedHit is one reranked semantic search result, carrying both the
// final score and the signals that produced it for telemetry (spec.md
// §4.4: "Signals {semanticScore, structuralBoost} are preserved").
type RankedHit struct {
	EntityID        string            `json:"entityId"`
	Path            string            `json:"path"`
	SemanticScore   float64           `json:"semanticScore"`
	StructuralBoost float64           `json:"structuralBoost"`
	FinalScore      float64           `json:"finalScore"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

type entry struct {
	hits     []RankedHit
	storedAt time.Time
	size     int
}

// Cache is the query→ranked-results LRU with TTL expiry.
type Cache struct {
	mu        sync.Mutex
	lru       *lru.Cache[string, *entry]
	ttl       time.Duration
	maxBytes  int
	currBytes int
}

// New builds a Cache. maxEntries/maxBytes/ttl fall back to the spec's
// defaults when non-positive.
func New(maxEntries int, maxBytes int, ttl time.Duration) (*Cache, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c := &Cache{ttl: ttl, maxBytes: maxBytes}
	l, err := lru.NewWithEvict(maxEntries, func(_ string, e *entry) {
		c.currBytes -= e.size
	})
	if err != nil {
		return nil, err
	}
	c.lru = l
	return c, nil
}

// Key derives a cache key from the normalized query string and a
// digest of the filter set (spec.md §4.4: "normalized query string +
// filter digest").
func Key(query string, filters map[string]string) string {
	norm := normalizeQuery(query)
	digest := filterDigest(filters)
	return norm + "|" + digest
}

func normalizeQuery(q string) string {
	var b []byte
	prevSpace := false
	for _, r := range q {
		switch {
		case r >= 'A' && r <= 'Z':
			b = append(b, byte(r-'A'+'a'))
			prevSpace = false
		case r == ' ' || r == '\t' || r == '\n':
			if !prevSpace {
				b = append(b, ' ')
			}
			prevSpace = true
		default:
			b = append(b, string(r)...)
			prevSpace = false
		}
	}
	start, end := 0, len(b)
	for start < end && b[start] == ' ' {
		start++
	}
	for end > start && b[end-1] == ' ' {
		end--
	}
	return string(b[start:end])
}

func filterDigest(filters map[string]string) string {
	if len(filters) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ordered := make(map[string]string, len(filters))
	for _, k := range keys {
		ordered[k] = filters[k]
	}
	raw, _ := json.Marshal(ordered)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:8])
}

// Get returns the cached hits for key if present and not TTL-expired.
func (c *Cache) Get(key string) ([]RankedHit, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	if time.Since(e.storedAt) > c.ttl {
		c.lru.Remove(key)
		return nil, false
	}
	return e.hits, true
}

// Put stores hits under key, evicting the oldest entries until the
// approximate byte budget is satisfied or only one entry remains; the
// newest entry is kept even when it alone exceeds the budget.
func (c *Cache) Put(key string, hits []RankedHit) {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := approxSize(hits)
	c.lru.Add(key, &entry{hits: hits, storedAt: timeNow(), size: size})
	c.currBytes += size

	for c.currBytes > c.maxBytes && c.lru.Len() > 1 {
		c.lru.RemoveOldest()
	}
}

// Len returns the number of live cache entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func approxSize(hits []RankedHit) int {
	size := 0
	for _, h := range hits {
		size += len(h.EntityID) + len(h.Path) + 48
		for k, v := range h.Metadata {
			size += len(k) + len(v)
		}
	}
	return size
}

func timeNow() time.Time {
	return time.Now()
}
