package stac

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/couchcryptid/coastal-erosion-etl/internal/domain"
	"github.com/couchcryptid/coastal-erosion-etl/internal/observability"
)

// CachedSource wraps a SceneSource with an in-memory LRU of materialized
// scene lists keyed by (region, date range, cloud limit). Concurrent misses
// for one key share a single fetch. Entries live for one run: BeginRun
// empties the cache so each run sees the provider's current acquisitions.
type CachedSource struct {
	inner   domain.SceneSource
	cache   *lruCache
	group   singleflight.Group
	metrics *observability.Metrics
}

// NewCachedSource creates a cache decorator around a scene source.
func NewCachedSource(inner domain.SceneSource, maxEntries int, metrics *observability.Metrics) *CachedSource {
	return &CachedSource{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

// BeginRun drops every cached scene list.
func (c *CachedSource) BeginRun(_ string) {
	c.cache.clear()
}

func (c *CachedSource) FetchScenes(ctx context.Context, region domain.Region, dates domain.DateRange, maxCloudCoverPercent int) (iter.Seq2[domain.Scene, error], error) {
	key := fmt.Sprintf("%s|%s|%d", region.Key(), dates, maxCloudCoverPercent)
	if results, ok := c.cache.get(key); ok {
		c.metrics.SceneCache.WithLabelValues("hit").Inc()
		return domain.Scenes(results), nil
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		results, err := c.materialize(ctx, region, dates, maxCloudCoverPercent)
		if err != nil {
			return nil, err
		}
		// Fetches cut short by an unreachable provider are retried next time.
		if !hasUnavailable(results) {
			c.cache.put(key, results)
		}
		return results, nil
	})
	if shared {
		c.metrics.SceneCache.WithLabelValues("shared").Inc()
	} else {
		c.metrics.SceneCache.WithLabelValues("miss").Inc()
	}
	if err != nil {
		return nil, err
	}
	return domain.Scenes(v.([]domain.SceneResult)), nil
}

func (c *CachedSource) materialize(ctx context.Context, region domain.Region, dates domain.DateRange, maxCloud int) ([]domain.SceneResult, error) {
	seq, err := c.inner.FetchScenes(ctx, region, dates, maxCloud)
	if err != nil {
		return nil, err
	}
	var results []domain.SceneResult
	for scene, err := range seq {
		results = append(results, domain.SceneResult{Scene: scene, Err: err})
	}
	return results, nil
}

func hasUnavailable(results []domain.SceneResult) bool {
	for _, r := range results {
		if r.Err != nil && (errors.Is(r.Err, domain.ErrSourceUnavailable) || errors.Is(r.Err, context.DeadlineExceeded) || errors.Is(r.Err, context.Canceled)) {
			return true
		}
	}
	return false
}

// lruCache is a thread-safe LRU of scene lists.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value []domain.SceneResult
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) ([]domain.SceneResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value []domain.SceneResult) {
	if c.maxEntries <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	for len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
	c.head, c.tail = nil, nil
}

func (c *lruCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.unlink(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.unlink(c.tail)
}
