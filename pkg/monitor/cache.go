package monitor

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/itswl/balance-alert/pkg/providers"
)

// DefaultCacheTTL is how long a fetched result stays fresh.
const DefaultCacheTTL = 5 * time.Minute

type cacheEntry struct {
	result   providers.CheckResult
	storedAt time.Time
}

// ResultCache is a TTL cache over check results. Concurrent fetches for
// the same key are coalesced into a single upstream call.
type ResultCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	group   singleflight.Group

	now func() time.Time
}

// NewResultCache creates a cache with the given TTL. A non-positive ttl
// falls back to DefaultCacheTTL.
func NewResultCache(ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &ResultCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Lookup returns the cached result for key if it is still fresh.
func (c *ResultCache) Lookup(key string) (providers.CheckResult, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.now().Sub(entry.storedAt) >= c.ttl {
		return providers.CheckResult{}, false
	}
	return entry.result, true
}

// Fetch returns the fresh cached result for key, or runs fn exactly
// once across concurrent callers and caches its outcome. Failed results
// are cached too: a broken upstream is not re-hammered inside one TTL
// window.
func (c *ResultCache) Fetch(ctx context.Context, key string, fn func(ctx context.Context) providers.CheckResult) providers.CheckResult {
	if result, ok := c.Lookup(key); ok {
		return result
	}

	v, _, _ := c.group.Do(key, func() (any, error) {
		// Re-check under the flight: a concurrent caller may have
		// just stored a fresh entry.
		if result, ok := c.Lookup(key); ok {
			return result, nil
		}
		result := fn(ctx)
		c.store(key, result)
		return result, nil
	})
	return v.(providers.CheckResult)
}

// Invalidate drops every entry. Manual refreshes use this to force
// fresh upstream calls.
func (c *ResultCache) Invalidate() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

func (c *ResultCache) store(key string, result providers.CheckResult) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{result: result, storedAt: c.now()}
	c.mu.Unlock()
}
