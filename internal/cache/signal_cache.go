// Package cache keeps the latest analysis results per symbol in Redis so
// repeated evaluations within a trading day skip recomputation and the sell
// advisor can compare against the previously recommended stop.
package cache

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/XinwuC/finance/internal/models"
)

// SignalCacheStats tracks cache performance counters.
type SignalCacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
}

// SignalCache stores the latest overreaction signal and sell-price
// recommendation per symbol with a TTL.
type SignalCache struct {
	redis        *redis.Client
	ttl          time.Duration
	mu           sync.Mutex
	stats        SignalCacheStats
	signalPrefix string
	sellPrefix   string
}

// NewSignalCache creates a Redis-backed signal cache.
func NewSignalCache(redisClient *redis.Client, ttl time.Duration) *SignalCache {
	return &SignalCache{
		redis:        redisClient,
		ttl:          ttl,
		signalPrefix: "signal:overreact:",
		sellPrefix:   "signal:sell_price:",
	}
}

// GetSignal returns the cached overreaction signal for a symbol, if present.
func (c *SignalCache) GetSignal(ctx context.Context, symbol string) (*models.OverreactSignal, bool) {
	var signal models.OverreactSignal
	if !c.get(ctx, c.signalPrefix+symbol, &signal) {
		return nil, false
	}
	return &signal, true
}

// SetSignal caches an emitted overreaction signal under its symbol.
func (c *SignalCache) SetSignal(ctx context.Context, signal *models.OverreactSignal) {
	c.set(ctx, c.signalPrefix+signal.Symbol, signal)
}

// LastRecommendation returns the previously cached sell-price recommendation
// for a symbol, if present.
func (c *SignalCache) LastRecommendation(ctx context.Context, symbol string) (*models.SellPriceRecommendation, bool) {
	var rec models.SellPriceRecommendation
	if !c.get(ctx, c.sellPrefix+symbol, &rec) {
		return nil, false
	}
	return &rec, true
}

// SetRecommendation caches a sell-price recommendation under its symbol.
func (c *SignalCache) SetRecommendation(ctx context.Context, rec *models.SellPriceRecommendation) {
	c.set(ctx, c.sellPrefix+rec.Symbol, rec)
}

// Stats returns a copy of the cache counters.
func (c *SignalCache) Stats() SignalCacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *SignalCache) get(ctx context.Context, key string, dest interface{}) bool {
	data, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		c.miss()
		return false
	}
	if err != nil {
		log.Printf("Redis error getting %s: %v", key, err)
		c.miss()
		return false
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		log.Printf("Error deserializing cached entry %s: %v", key, err)
		c.miss()
		return false
	}
	c.mu.Lock()
	c.stats.Hits++
	c.mu.Unlock()
	return true
}

func (c *SignalCache) set(ctx context.Context, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		log.Printf("Error serializing cache entry %s: %v", key, err)
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.Printf("Redis error setting %s: %v", key, err)
		return
	}
	c.mu.Lock()
	c.stats.Sets++
	c.mu.Unlock()
}

func (c *SignalCache) miss() {
	c.mu.Lock()
	c.stats.Misses++
	c.mu.Unlock()
}
