package cache

import (
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"phrasematch/internal/domain"
)

// QueryCache is an LRU of search results with a TTL. Invalidate bumps a
// generation so results computed against an older index are never stored.
// Cached slices are shared and must be treated as read-only.
type QueryCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	order   []string
	maxSize int
	ttl     time.Duration
	gen     uint64

	group  singleflight.Group
	hits   atomic.Int64
	misses atomic.Int64
}

type cacheEntry struct {
	matches   []domain.Match
	timestamp time.Time
	gen       uint64
}

func NewQueryCache(maxSize int, ttl time.Duration) *QueryCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QueryCache{
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// cacheKey folds case because search does; whitespace is kept since it
// changes whole-phrase distances.
func cacheKey(query string, limit int) string {
	return strings.ToLower(query) + "\x00" + strconv.Itoa(limit)
}

func (c *QueryCache) Get(query string, limit int) ([]domain.Match, bool) {
	key := cacheKey(query, limit)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		c.misses.Add(1)
		return nil, false
	}
	if time.Since(entry.timestamp) > c.ttl || entry.gen != c.gen {
		delete(c.entries, key)
		c.removeFromOrder(key)
		c.misses.Add(1)
		return nil, false
	}

	c.moveToEnd(key)
	c.hits.Add(1)
	return entry.matches, true
}

// Put stores matches computed while the cache was at generation gen. Stale
// generations are dropped.
func (c *QueryCache) Put(query string, limit int, gen uint64, matches []domain.Match) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		return
	}

	key := cacheKey(query, limit)
	if _, exists := c.entries[key]; exists {
		c.moveToEnd(key)
	} else {
		if len(c.entries) >= c.maxSize {
			c.evictOldest()
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = &cacheEntry{
		matches:   matches,
		timestamp: time.Now(),
		gen:       gen,
	}
}

// Generation returns the current generation for a later Put.
func (c *QueryCache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

// GetOrCompute returns cached matches or runs compute once per key, even
// when many callers miss at the same time. hit reports a cache hit.
func (c *QueryCache) GetOrCompute(query string, limit int, compute func() ([]domain.Match, error)) (matches []domain.Match, hit bool, err error) {
	if matches, ok := c.Get(query, limit); ok {
		return matches, true, nil
	}

	gen := c.Generation()
	key := cacheKey(query, limit) + "\x00" + strconv.FormatUint(gen, 10)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		matches, err := compute()
		if err != nil {
			return nil, err
		}
		c.Put(query, limit, gen, matches)
		return matches, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]domain.Match), false, nil
}

func (c *QueryCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.order = c.order[:0]
	c.gen++
}

func (c *QueryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *QueryCache) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *QueryCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
