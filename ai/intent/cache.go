package intent

import (
	"crypto/sha256"
	"encoding/hex"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	defaultCacheCapacity = 500
	defaultCacheTTL      = 5 * time.Minute
)

// CacheConfig configures ResultCache.
type CacheConfig struct {
	Capacity int           // Maximum number of entries (default: 500)
	TTL      time.Duration // Entry lifetime (default: 5min)
}

type cacheEntry struct {
	analysis *analysis
	storedAt time.Time
}

// ResultCache is a bounded, TTL-limited cache of query analyses keyed by
// normalized query text. It only holds config-independent data; verdicts are
// always recomputed against the caller's current Config.
type ResultCache struct {
	cache  *lru.Cache[string, cacheEntry]
	ttl    time.Duration
	now    func() time.Time
	hits   atomic.Int64
	misses atomic.Int64
}

// NewResultCache creates a result cache.
func NewResultCache(cfg CacheConfig) *ResultCache {
	if cfg.Capacity <= 0 {
		cfg.Capacity = defaultCacheCapacity
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultCacheTTL
	}
	// lru.New only fails on a non-positive size, guarded above.
	cache, _ := lru.New[string, cacheEntry](cfg.Capacity)
	return &ResultCache{
		cache: cache,
		ttl:   cfg.TTL,
		now:   time.Now,
	}
}

func (c *ResultCache) get(normalized string, enhanced bool) (*analysis, bool) {
	key := cacheKey(normalized, enhanced)
	entry, ok := c.cache.Get(key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	if c.now().Sub(entry.storedAt) >= c.ttl {
		c.cache.Remove(key)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return entry.analysis.clone(), true
}

func (c *ResultCache) set(normalized string, enhanced bool, a *analysis) {
	c.cache.Add(cacheKey(normalized, enhanced), cacheEntry{
		analysis: a.clone(),
		storedAt: c.now(),
	})
}

// Len returns the number of cached entries, including expired ones not yet evicted.
func (c *ResultCache) Len() int {
	return c.cache.Len()
}

// Purge removes all entries and resets the counters.
func (c *ResultCache) Purge() {
	c.cache.Purge()
	c.hits.Store(0)
	c.misses.Store(0)
}

// CacheStats reports hit/miss counters.
type CacheStats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
	Size    int     `json:"size"`
}

// Stats returns current counters.
func (c *ResultCache) Stats() CacheStats {
	hits, misses := c.hits.Load(), c.misses.Load()
	stats := CacheStats{Hits: hits, Misses: misses, Size: c.cache.Len()}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	return stats
}

// cacheKey hashes the normalized query; basic and enhanced analyses are kept apart.
func cacheKey(normalized string, enhanced bool) string {
	hash := sha256.Sum256([]byte(normalized))
	prefix := "intent:basic:"
	if enhanced {
		prefix = "intent:enhanced:"
	}
	return prefix + hex.EncodeToString(hash[:])
}
