package cache

import (
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/apiviz/apiviz-go/internal/logging"
	"github.com/apiviz/apiviz-go/internal/models"
)

// Cache memoizes per-file analysis results keyed by file path. An entry is
// valid only while the file's mtime matches the one recorded at Set time and
// the entry is younger than the TTL. The mtime check keeps results correct;
// the TTL bounds retention for files that are never touched again.
//
// Separate instances exist per analysis kind (dependency results, route
// results) so keys never collide across kinds and each can be sized
// independently.
type Cache[T any] struct {
	entries map[string]*entry[T]
	order   []string // insertion order, for bulk eviction
	ttl     time.Duration
	maxSize int

	hits   int64
	misses int64

	mu sync.RWMutex
}

type entry[T any] struct {
	mtime     time.Time
	data      T
	createdAt time.Time
}

const (
	DefaultTTL     = 5 * time.Minute
	DefaultMaxSize = 500
)

// New creates a cache with the given TTL and capacity. Non-positive arguments
// fall back to the defaults.
func New[T any](ttl time.Duration, maxSize int) *Cache[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Cache[T]{
		entries: make(map[string]*entry[T]),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// Get returns the cached value for path. A miss is reported when the entry is
// absent, TTL-expired, the file's current mtime differs from the recorded
// one, or the file can no longer be stat'd (deleted files evict their entry).
func (c *Cache[T]) Get(path string) (T, bool) {
	var zero T

	c.mu.RLock()
	e, ok := c.entries[path]
	c.mu.RUnlock()

	if !ok {
		c.miss()
		return zero, false
	}

	if time.Since(e.createdAt) >= c.ttl {
		logging.Debug("cache entry expired", "path", path)
		c.Invalidate(path)
		c.miss()
		return zero, false
	}

	info, err := os.Stat(path)
	if err != nil {
		// Stat failure is an ordinary miss, not an error.
		c.Invalidate(path)
		c.miss()
		return zero, false
	}
	if !info.ModTime().Equal(e.mtime) {
		logging.Debug("cache entry stale", "path", path)
		c.Invalidate(path)
		c.miss()
		return zero, false
	}

	c.hit()
	return e.data, true
}

// Set stores data for path, recording the file's current mtime. At capacity
// the oldest ~10% of entries are evicted in one sweep.
func (c *Cache[T]) Set(path string, data T) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[path]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}

	if _, exists := c.entries[path]; !exists {
		c.order = append(c.order, path)
	}
	c.entries[path] = &entry[T]{
		mtime:     info.ModTime(),
		data:      data,
		createdAt: time.Now(),
	}
	return nil
}

// evictOldestLocked removes the oldest tenth of entries by insertion order.
func (c *Cache[T]) evictOldestLocked() {
	n := len(c.order) / 10
	if n < 1 {
		n = 1
	}
	evicted := 0
	kept := c.order[:0]
	for _, path := range c.order {
		if evicted < n {
			if _, ok := c.entries[path]; ok {
				delete(c.entries, path)
				evicted++
				continue
			}
			// Stale order entry from a prior Invalidate; drop it for free.
			continue
		}
		kept = append(kept, path)
	}
	c.order = kept
	logging.Debug("cache evicted oldest entries", "count", evicted)
}

// Invalidate removes the entry for path.
func (c *Cache[T]) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, path)
}

// InvalidatePattern removes all entries whose key matches the regexp.
func (c *Cache[T]) InvalidatePattern(pattern *regexp.Regexp) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for path := range c.entries {
		if pattern.MatchString(path) {
			delete(c.entries, path)
			removed++
		}
	}
	return removed
}

// InvalidateDirectory removes all entries under the directory prefix.
func (c *Cache[T]) InvalidateDirectory(dir string) int {
	dir = strings.TrimSuffix(dir, string(os.PathSeparator))
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for path := range c.entries {
		if path == dir || strings.HasPrefix(path, dir+string(os.PathSeparator)) {
			delete(c.entries, path)
			removed++
		}
	}
	return removed
}

// Clear drops every entry and resets the counters.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry[T])
	c.order = nil
	c.hits = 0
	c.misses = 0
}

// Stats reports hit/miss counters and the current size.
func (c *Cache[T]) Stats() models.CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stats := models.CacheStats{
		Hits:   c.hits,
		Misses: c.misses,
		Size:   len(c.entries),
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	return stats
}

func (c *Cache[T]) hit() {
	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
}

func (c *Cache[T]) miss() {
	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
}
