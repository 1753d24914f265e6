package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itswl/balance-alert/pkg/providers"
)

func TestCacheLookupMiss(t *testing.T) {
	c := NewResultCache(time.Minute)

	_, ok := c.Lookup("nothing")
	assert.False(t, ok)
}

func TestCacheFetchStoresAndServes(t *testing.T) {
	c := NewResultCache(time.Minute)
	calls := 0

	fn := func(ctx context.Context) providers.CheckResult {
		calls++
		return providers.Ok(42, "USD")
	}

	first := c.Fetch(context.Background(), "p1", fn)
	second := c.Fetch(context.Background(), "p1", fn)

	assert.Equal(t, 1, calls)
	assert.InDelta(t, 42, first.Value, 0.001)
	assert.Equal(t, first, second)
}

func TestCacheFailuresAreCachedToo(t *testing.T) {
	c := NewResultCache(time.Minute)
	calls := 0

	fn := func(ctx context.Context) providers.CheckResult {
		calls++
		return providers.Fail("upstream down")
	}

	first := c.Fetch(context.Background(), "p1", fn)
	second := c.Fetch(context.Background(), "p1", fn)

	assert.Equal(t, 1, calls)
	assert.False(t, first.Success)
	assert.Equal(t, first, second)
}

func TestCacheTTLExpiry(t *testing.T) {
	c := NewResultCache(5 * time.Minute)

	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return current }

	c.store("p1", providers.Ok(10, "USD"))

	_, ok := c.Lookup("p1")
	require.True(t, ok)

	current = current.Add(4 * time.Minute)
	_, ok = c.Lookup("p1")
	assert.True(t, ok, "entry inside TTL should be fresh")

	current = current.Add(2 * time.Minute)
	_, ok = c.Lookup("p1")
	assert.False(t, ok, "entry past TTL should expire")
}

func TestCacheCoalescesConcurrentFetches(t *testing.T) {
	c := NewResultCache(time.Minute)

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	fn := func(ctx context.Context) providers.CheckResult {
		calls.Add(1)
		close(started)
		<-release
		return providers.Ok(7, "USD")
	}

	const workers = 10
	var wg sync.WaitGroup
	results := make([]providers.CheckResult, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = c.Fetch(context.Background(), "p1", fn)
		}()
	}

	<-started
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.InDelta(t, 7, r.Value, 0.001)
	}
}

func TestCacheInvalidate(t *testing.T) {
	c := NewResultCache(time.Minute)
	c.store("p1", providers.Ok(10, "USD"))

	c.Invalidate()

	_, ok := c.Lookup("p1")
	assert.False(t, ok)
}
