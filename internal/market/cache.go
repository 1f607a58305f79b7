package market

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ksk-taka/stock-prediction-sub003/internal/metrics"
)

// CachedSource wraps a BarSource with a process-local TTL cache so repeated
// scans over the same universe do not hammer the upstream. Persistent caching
// lives outside this core.
type CachedSource struct {
	inner BarSource
	ttl   time.Duration

	mu      sync.RWMutex
	entries map[cacheKey]cacheEntry
}

type cacheKey struct {
	symbol string
	tf     Timeframe
}

type cacheEntry struct {
	bars      []Bar
	fetchedAt time.Time
}

// NewCachedSource creates a TTL cache in front of inner
func NewCachedSource(inner BarSource, ttl time.Duration) *CachedSource {
	return &CachedSource{
		inner:   inner,
		ttl:     ttl,
		entries: make(map[cacheKey]cacheEntry),
	}
}

// Bars returns cached bars when fresh, otherwise fetches and caches
func (c *CachedSource) Bars(ctx context.Context, symbol string, tf Timeframe) ([]Bar, error) {
	key := cacheKey{symbol: symbol, tf: tf}

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && time.Since(entry.fetchedAt) < c.ttl {
		metrics.BarCacheHits.Inc()
		log.Debug().
			Str("symbol", symbol).
			Str("timeframe", string(tf)).
			Msg("Bar cache hit")
		return entry.bars, nil
	}

	bars, err := c.inner.Bars(ctx, symbol, tf)
	if err != nil {
		// Serve stale data over a hard failure when we have it
		if ok {
			log.Warn().
				Err(err).
				Str("symbol", symbol).
				Msg("Bar fetch failed, serving stale cache entry")
			return entry.bars, nil
		}
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{bars: bars, fetchedAt: time.Now()}
	c.mu.Unlock()

	return bars, nil
}

// Invalidate drops the cached entry for a symbol/timeframe
func (c *CachedSource) Invalidate(symbol string, tf Timeframe) {
	c.mu.Lock()
	delete(c.entries, cacheKey{symbol: symbol, tf: tf})
	c.mu.Unlock()
}
