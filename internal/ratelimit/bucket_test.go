package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucket_AcquireConsumesCapacity(t *testing.T) {
	b := NewBucket(Config{Capacity: 2, RefillRate: 1000})
	ctx := context.Background()
	require.NoError(t, b.Acquire(ctx, 1))
	require.NoError(t, b.Acquire(ctx, 1))
	assert.Equal(t, int64(2), b.Stats().TotalAcquired)
}

func TestBucket_AcquireBlocksUntilRefill(t *testing.T) {
	b := NewBucket(Config{Capacity: 1, RefillRate: 20}) // 50ms per token
	ctx := context.Background()

	require.NoError(t, b.Acquire(ctx, 1))

	start := time.Now()
	require.NoError(t, b.Acquire(ctx, 1))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
}

func TestBucket_AcquireHonorsCancellation(t *testing.T) {
	b := NewBucket(Config{Capacity: 1, RefillRate: 0.1}) // very slow refill
	ctx := context.Background()
	require.NoError(t, b.Acquire(ctx, 1))

	cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()

	err := b.Acquire(cctx, 1)
	require.Error(t, err)
}

func TestBucket_ConcurrentAcquiresAllSucceed(t *testing.T) {
	b := NewBucket(Config{Capacity: 5, RefillRate: 1000})
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			errs[idx] = b.Acquire(ctx, 1)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int64(10), b.Stats().TotalAcquired)
}

func TestManager_UnknownProviderGetsFallback(t *testing.T) {
	m := NewManager(DefaultConfigs())
	stats := m.Stats("some-unregistered-provider")
	assert.Equal(t, fallbackConfig.Capacity, stats.Capacity)
}

func TestManager_KnownProviderUsesSeededConfig(t *testing.T) {
	m := NewManager(DefaultConfigs())
	stats := m.Stats("portscan")
	assert.Equal(t, 1, stats.Capacity)
	assert.Equal(t, 1.0, stats.RefillRate)
}

func TestManager_SeparateProvidersDoNotShareBuckets(t *testing.T) {
	m := NewManager(map[string]Config{
		"a": {Capacity: 1, RefillRate: 1000},
		"b": {Capacity: 1, RefillRate: 1000},
	})
	ctx := context.Background()
	require.NoError(t, m.Acquire(ctx, "a", 1))
	assert.Equal(t, int64(1), m.Stats("a").TotalAcquired)
	assert.Equal(t, int64(0), m.Stats("b").TotalAcquired)
}
