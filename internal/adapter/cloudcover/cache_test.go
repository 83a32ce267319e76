package cloudcover

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/uv-irradiance-etl/internal/domain"
	"github.com/couchcryptid/uv-irradiance-etl/internal/observability"
)

// --- mock for cache tests ---

type countingProvider struct {
	calls atomic.Int32
	delay time.Duration
	cover domain.CloudCover
	err   error
}

func (m *countingProvider) CloudCover(context.Context, time.Time, domain.Position) (domain.CloudCover, error) {
	m.calls.Add(1)
	time.Sleep(m.delay)
	return m.cover, m.err
}

var (
	testDate = time.Date(2020, time.May, 2, 0, 0, 0, 0, time.UTC)
	testPos  = domain.Position{Latitude: 37.1, Longitude: 6.73}
	oneHour  = domain.CloudCover{Times: []float64{0}, Values: []float64{0.4}}
)

// --- CachedProvider tests ---

func TestCachedProvider_CacheHit(t *testing.T) {
	inner := &countingProvider{cover: oneHour}
	metrics := observability.NewMetricsForTesting()
	cached := NewCachedProvider(inner, 10, metrics)

	c1, err := cached.CloudCover(context.Background(), testDate, testPos)
	require.NoError(t, err)
	c2, err := cached.CloudCover(context.Background(), testDate.Add(13*time.Hour), testPos)
	require.NoError(t, err)

	assert.Equal(t, oneHour, c1)
	assert.Equal(t, oneHour, c2)
	assert.Equal(t, int32(1), inner.calls.Load(), "should only call inner once per day")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CloudCache.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CloudCache.WithLabelValues("miss")))
}

func TestCachedProvider_DifferentKeysMiss(t *testing.T) {
	inner := &countingProvider{cover: oneHour}
	cached := NewCachedProvider(inner, 10, observability.NewMetricsForTesting())

	_, _ = cached.CloudCover(context.Background(), testDate, testPos)
	_, _ = cached.CloudCover(context.Background(), testDate.AddDate(0, 0, 1), testPos)
	_, _ = cached.CloudCover(context.Background(), testDate, domain.Position{Latitude: 40, Longitude: 3})

	assert.Equal(t, int32(3), inner.calls.Load())
}

func TestCachedProvider_ErrorsAndEmptyNotCached(t *testing.T) {
	inner := &countingProvider{err: errors.New("quota exceeded")}
	cached := NewCachedProvider(inner, 10, observability.NewMetricsForTesting())

	_, err := cached.CloudCover(context.Background(), testDate, testPos)
	require.Error(t, err)

	inner.err = nil
	_, err = cached.CloudCover(context.Background(), testDate, testPos)
	require.NoError(t, err)
	_, err = cached.CloudCover(context.Background(), testDate, testPos)
	require.NoError(t, err)

	assert.Equal(t, int32(3), inner.calls.Load())
	assert.Zero(t, cached.cache.size())
}

func TestCachedProvider_ConcurrentMissesShareRequest(t *testing.T) {
	inner := &countingProvider{cover: oneHour, delay: 50 * time.Millisecond}
	cached := NewCachedProvider(inner, 10, observability.NewMetricsForTesting())

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := cached.CloudCover(context.Background(), testDate, testPos)
			assert.NoError(t, err)
			assert.Equal(t, oneHour, c)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), inner.calls.Load())
}

// --- LRU cache unit tests ---

func TestLRUCache_BasicGetPut(t *testing.T) {
	c := newLRUCache(3)

	_, ok := c.get("a")
	assert.False(t, ok)

	c.put("a", oneHour)
	v, ok := c.get("a")
	require.True(t, ok)
	assert.Equal(t, oneHour, v)
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := newLRUCache(2)
	c.put("a", domain.CloudCover{Values: []float64{1}})
	c.put("b", domain.CloudCover{Values: []float64{2}})

	_, _ = c.get("a") // a is now most recent
	c.put("c", domain.CloudCover{Values: []float64{3}})

	_, ok := c.get("b")
	assert.False(t, ok, "b should have been evicted")
	_, ok = c.get("a")
	assert.True(t, ok)
	_, ok = c.get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, c.size())
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache(2)
	c.put("a", domain.CloudCover{Values: []float64{1}})
	c.put("a", domain.CloudCover{Values: []float64{9}})

	v, ok := c.get("a")
	require.True(t, ok)
	assert.Equal(t, []float64{9}, v.Values)
	assert.Equal(t, 1, c.size())
}
