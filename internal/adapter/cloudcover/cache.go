package cloudcover

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/couchcryptid/uv-irradiance-etl/internal/domain"
	"github.com/couchcryptid/uv-irradiance-etl/internal/observability"
)

// Provider is anything that can supply a day of cloud cover for a position.
type Provider interface {
	CloudCover(ctx context.Context, date time.Time, pos domain.Position) (domain.CloudCover, error)
}

// CachedProvider wraps a Provider with an in-memory LRU cache. Concurrent
// misses for the same key share one upstream request.
type CachedProvider struct {
	inner   Provider
	cache   *lruCache
	group   singleflight.Group
	metrics *observability.Metrics
}

// NewCachedProvider creates a cache decorator around a provider.
func NewCachedProvider(inner Provider, maxEntries int, metrics *observability.Metrics) *CachedProvider {
	return &CachedProvider{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedProvider) CloudCover(ctx context.Context, date time.Time, pos domain.Position) (domain.CloudCover, error) {
	key := fmt.Sprintf("%s|%.6f|%.6f", domain.TruncateDay(date).Format(time.DateOnly), pos.Latitude, pos.Longitude)
	if cover, ok := c.cache.get(key); ok {
		c.metrics.CloudCache.WithLabelValues("hit").Inc()
		return cover, nil
	}
	c.metrics.CloudCache.WithLabelValues("miss").Inc()

	v, err, _ := c.group.Do(key, func() (any, error) {
		cover, err := c.inner.CloudCover(ctx, date, pos)
		if err != nil {
			return domain.CloudCover{}, err
		}
		// Only cache non-empty results so a later run can retry.
		if len(cover.Values) > 0 {
			c.cache.put(key, cover)
		}
		return cover, nil
	})
	return v.(domain.CloudCover), err
}

// lruCache is a thread-safe LRU cache of cloud cover days.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	order      *list.List // front is most recently used
	entries    map[string]*list.Element
}

type entry struct {
	key   string
	value domain.CloudCover
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
	}
}

func (c *lruCache) get(key string) (domain.CloudCover, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return domain.CloudCover{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*entry).value, true
}

func (c *lruCache) put(key string, value domain.CloudCover) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*entry).value = value
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&entry{key: key, value: value})
	for c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*entry).key)
	}
}

func (c *lruCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
