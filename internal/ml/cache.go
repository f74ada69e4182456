package ml

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// CacheKey represents a unique key for caching predictions
type CacheKey struct {
	Model    string
	Features []float64
}

// String returns string representation of cache key
func (k CacheKey) String() string {
	var b strings.Builder
	b.WriteString(k.Model)
	b.WriteByte('|')
	for i, f := range k.Features {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	}
	return b.String()
}

// PredictionCache provides in-memory caching for remote model predictions
type PredictionCache struct {
	cache     *cache.Cache
	ttl       time.Duration
	maxSize   int
	mu        sync.RWMutex
	hitCount  uint64
	missCount uint64
}

// NewPredictionCache creates a new prediction cache
func NewPredictionCache(ttl time.Duration, maxSize int) *PredictionCache {
	return &PredictionCache{
		cache:   cache.New(ttl, ttl*2),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// Get retrieves a cached prediction
func (pc *PredictionCache) Get(ctx context.Context, key CacheKey) (float64, bool) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if result, found := pc.cache.Get(key.String()); found {
		if seconds, ok := result.(float64); ok {
			pc.hitCount++
			pc.updateMetrics()
			return seconds, true
		}
	}

	pc.missCount++
	pc.updateMetrics()
	return 0, false
}

// Set stores a prediction in cache
func (pc *PredictionCache) Set(ctx context.Context, key CacheKey, seconds float64) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	// Check size limit
	if pc.maxSize > 0 && pc.cache.ItemCount() >= pc.maxSize {
		// Remove expired items first
		pc.cache.DeleteExpired()
		if pc.cache.ItemCount() >= pc.maxSize {
			return
		}
	}

	pc.cache.Set(key.String(), seconds, pc.ttl)
}

// Invalidate removes all cache entries for a model
func (pc *PredictionCache) Invalidate(ctx context.Context, model string) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	prefix := model + "|"
	for k := range pc.cache.Items() {
		if strings.HasPrefix(k, prefix) {
			pc.cache.Delete(k)
		}
	}
}

// Clear flushes the entire cache
func (pc *PredictionCache) Clear() {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	pc.cache.Flush()
	pc.hitCount = 0
	pc.missCount = 0
}

// Stats returns cache statistics
func (pc *PredictionCache) Stats() (hits, misses uint64, ratio float64) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return pc.stats()
}

func (pc *PredictionCache) stats() (hits, misses uint64, ratio float64) {
	hits = pc.hitCount
	misses = pc.missCount
	total := hits + misses
	if total > 0 {
		ratio = float64(hits) / float64(total)
	}
	return
}

// updateMetrics updates Prometheus metrics. Callers hold the lock.
func (pc *PredictionCache) updateMetrics() {
	_, _, ratio := pc.stats()
	MLCacheHitRatio.Set(ratio)
}

// ItemCount returns the number of items in cache
func (pc *PredictionCache) ItemCount() int {
	return pc.cache.ItemCount()
}

// CachedModel wraps a remote model with prediction caching
type CachedModel struct {
	Model
	cache  *PredictionCache
	logger *logrus.Entry
}

// NewCachedModel creates a new cached model
func NewCachedModel(model Model, cache *PredictionCache, logger *logrus.Logger) *CachedModel {
	return &CachedModel{
		Model:  model,
		cache:  cache,
		logger: logger.WithFields(logrus.Fields{"component": "ml", "model": model.Name()}),
	}
}

// Predict retrieves a prediction with caching
func (c *CachedModel) Predict(ctx context.Context, features []float64) (float64, error) {
	key := CacheKey{Model: c.Name(), Features: features}

	if seconds, ok := c.cache.Get(ctx, key); ok {
		c.logger.Debug("Cache hit for prediction")
		MLPredictionsTotal.WithLabelValues("cached", "true").Inc()
		return seconds, nil
	}

	seconds, err := c.Model.Predict(ctx, features)
	if err != nil {
		return 0, err
	}
	c.cache.Set(ctx, key, seconds)
	return seconds, nil
}

// HealthCheck forwards to the wrapped model when it is remote
func (c *CachedModel) HealthCheck(ctx context.Context) error {
	if p, ok := c.Model.(Prober); ok {
		return p.HealthCheck(ctx)
	}
	return nil
}
