package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/pscheid92/kioskads/internal/adapter/metrics"
	"github.com/pscheid92/kioskads/internal/domain"
)

const (
	catalogCacheKey = "catalog_cache:definitions"
	redisCacheTTL   = 10 * time.Minute

	layerMemory = "memory"
	layerRedis  = "redis"
)

// CatalogCache fronts the definition store with an in-memory layer and an
// optional shared Redis layer. Sales are never cached and go straight to the source.
type CatalogCache struct {
	source  domain.CatalogReader
	rdb     goredis.Cmdable
	mem     *memoryCache
	group   singleflight.Group
	metrics *metrics.CacheMetrics
}

// NewCatalogCache creates the cache. rdb and m may be nil.
func NewCatalogCache(source domain.CatalogReader, rdb goredis.Cmdable, memTTL time.Duration, clock clockwork.Clock, m *metrics.CacheMetrics) *CatalogCache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CatalogCache{
		source:  source,
		rdb:     rdb,
		mem:     newMemoryCache(memTTL, clock),
		metrics: m,
	}
}

func (c *CatalogCache) ListOverlayDefinitions(ctx context.Context) ([]domain.OverlayDefinition, error) {
	// Layer 1: in-memory cache
	if defs, ok := c.mem.get(); ok {
		c.hit(layerMemory)
		return defs, nil
	}
	c.miss(layerMemory)

	// Concurrent mounts after an invalidation share one Redis/Postgres round trip.
	v, err, _ := c.group.Do(catalogCacheKey, func() (any, error) {
		// Layer 2: Redis cache
		if defs, ok := c.getCached(ctx); ok {
			c.hit(layerRedis)
			c.mem.set(defs)
			return defs, nil
		}
		c.miss(layerRedis)

		// Layer 3: source of truth
		defs, err := c.source.ListOverlayDefinitions(ctx)
		if err != nil {
			return nil, fmt.Errorf("catalog lookup failed: %w", err)
		}

		c.mem.set(defs)
		c.writeCache(ctx, defs)
		return defs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.OverlayDefinition), nil
}

func (c *CatalogCache) ListRecentSales(ctx context.Context, limit int) ([]domain.SaleRecord, error) {
	return c.source.ListRecentSales(ctx, limit)
}

// Invalidate drops both cache layers. origin labels the metric ("local" or "remote").
func (c *CatalogCache) Invalidate(ctx context.Context, origin string) error {
	c.mem.invalidate()
	if c.metrics != nil {
		c.metrics.Invalidations.WithLabelValues(origin).Inc()
	}

	if c.rdb == nil {
		return nil
	}
	if err := c.rdb.Del(ctx, catalogCacheKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate catalog cache: %w", err)
	}
	return nil
}

func (c *CatalogCache) writeCache(ctx context.Context, defs []domain.OverlayDefinition) {
	if c.rdb == nil {
		return
	}

	encoded, err := json.Marshal(defs)
	if err != nil {
		slog.Warn("Failed to marshal catalog for Redis cache", "error", err)
		return
	}

	if err := c.rdb.Set(ctx, catalogCacheKey, encoded, redisCacheTTL).Err(); err != nil {
		slog.Warn("Failed to populate Redis catalog cache", "error", err)
	}
}

func (c *CatalogCache) getCached(ctx context.Context) ([]domain.OverlayDefinition, bool) {
	if c.rdb == nil {
		return nil, false
	}

	data, err := c.rdb.Get(ctx, catalogCacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			slog.Warn("Redis catalog cache GET failed", "error", err)
		}
		return nil, false
	}

	var defs []domain.OverlayDefinition
	if err := json.Unmarshal(data, &defs); err != nil {
		slog.Warn("Failed to unmarshal cached catalog", "error", err)
		return nil, false
	}
	return defs, true
}

func (c *CatalogCache) hit(layer string) {
	if c.metrics != nil {
		c.metrics.Hits.WithLabelValues(layer).Inc()
	}
}

func (c *CatalogCache) miss(layer string) {
	if c.metrics != nil {
		c.metrics.Misses.WithLabelValues(layer).Inc()
	}
}

// memoryCache holds the single catalog snapshot with TTL-based expiry.
type memoryCache struct {
	mu        sync.RWMutex
	defs      []domain.OverlayDefinition
	expiresAt time.Time
	present   bool
	ttl       time.Duration
	clock     clockwork.Clock
}

func newMemoryCache(ttl time.Duration, clock clockwork.Clock) *memoryCache {
	return &memoryCache{ttl: ttl, clock: clock}
}

func (c *memoryCache) get() ([]domain.OverlayDefinition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.present || !c.clock.Now().Before(c.expiresAt) {
		return nil, false
	}
	return c.defs, true
}

func (c *memoryCache) set(defs []domain.OverlayDefinition) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.defs = defs
	c.present = true
	c.expiresAt = c.clock.Now().Add(c.ttl)
}

func (c *memoryCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.defs = nil
	c.present = false
}
