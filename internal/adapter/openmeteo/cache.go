package openmeteo

import (
	"context"
	"fmt"
	"time"

	"github.com/couchcryptid/constitution-forecast-service/internal/domain"
	"github.com/couchcryptid/constitution-forecast-service/internal/observability"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultCacheSize = 500
	defaultCacheTTL  = time.Hour
)

// CachedProvider wraps a WeatherProvider with an in-memory LRU cache keyed by
// rounded coordinate and date. Entries expire after a TTL because the model
// output for today and tomorrow is revised through the day.
type CachedProvider struct {
	inner   domain.WeatherProvider
	cache   *expirable.LRU[string, domain.HourlySeries]
	metrics *observability.Metrics
}

// NewCachedProvider creates a cache decorator around a weather provider. A
// non-positive size or ttl falls back to the default.
func NewCachedProvider(inner domain.WeatherProvider, maxEntries int, ttl time.Duration, metrics *observability.Metrics) *CachedProvider {
	if maxEntries <= 0 {
		maxEntries = defaultCacheSize
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	cache := expirable.NewLRU[string, domain.HourlySeries](maxEntries, nil, ttl)
	return &CachedProvider{
		inner:   inner,
		cache:   cache,
		metrics: metrics,
	}
}

func (c *CachedProvider) HourlySeries(ctx context.Context, lat, lon float64, day time.Time) (domain.HourlySeries, error) {
	key := cacheKey(lat, lon, day)
	if series, ok := c.cache.Get(key); ok {
		c.metrics.WeatherCache.WithLabelValues("hit").Inc()
		return series, nil
	}
	c.metrics.WeatherCache.WithLabelValues("miss").Inc()

	series, err := c.inner.HourlySeries(ctx, lat, lon, day)
	if err != nil {
		return nil, err
	}
	// Only cache non-empty results so a transient empty response can be retried.
	if len(series) > 0 {
		c.cache.Add(key, series)
	}
	return series, nil
}

// cacheKey rounds to two decimals, roughly 1 km and finer than the model grid.
func cacheKey(lat, lon float64, day time.Time) string {
	return fmt.Sprintf("%.2f,%.2f|%s", lat, lon, day.Format(domain.DateLayout))
}
