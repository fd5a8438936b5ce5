package embedding

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// countingProvider wraps MockProvider and counts upstream calls.
type countingProvider struct {
	*MockProvider
	calls atomic.Int64
}

func (c *countingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	return c.MockProvider.Embed(ctx, text)
}

func TestCacheHit(t *testing.T) {
	ctx := context.Background()
	provider := &countingProvider{MockProvider: NewMockProvider(32)}
	cache, err := NewCache(provider, 16)
	require.NoError(t, err)

	first, err := cache.GetOrCreate(ctx, "the same text")
	require.NoError(t, err)
	second, err := cache.GetOrCreate(ctx, "the same text")
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, int64(1), provider.calls.Load())
	require.Equal(t, 1, cache.Len())
}

func TestCacheKey(t *testing.T) {
	a, err := NewCache(NewMockProvider(8), 16)
	require.NoError(t, err)
	b, err := NewCache(&MockProvider{Dim: 8}, 16)
	require.NoError(t, err)

	// Same model, same text: identical key. Different text: different key.
	require.Equal(t, a.key("text"), b.key("text"))
	require.NotEqual(t, a.key("text"), a.key("other"))
}

func TestCacheEviction(t *testing.T) {
	ctx := context.Background()
	provider := &countingProvider{MockProvider: NewMockProvider(8)}
	cache, err := NewCache(provider, 2)
	require.NoError(t, err)

	_, err = cache.GetOrCreate(ctx, "a")
	require.NoError(t, err)
	_, err = cache.GetOrCreate(ctx, "b")
	require.NoError(t, err)
	_, err = cache.GetOrCreate(ctx, "c")
	require.NoError(t, err)
	require.Equal(t, 2, cache.Len())

	// "a" was evicted; fetching it again goes upstream.
	_, err = cache.GetOrCreate(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, int64(4), provider.calls.Load())
}

func TestCacheSingleflight(t *testing.T) {
	ctx := context.Background()
	provider := &countingProvider{MockProvider: NewMockProvider(8)}
	cache, err := NewCache(provider, 16)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.GetOrCreate(ctx, "contended text")
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	// Concurrent misses for one key collapse; allow a small race margin but
	// far fewer calls than goroutines.
	require.LessOrEqual(t, provider.calls.Load(), int64(2))
}

func TestCachePropagatesProviderError(t *testing.T) {
	cache, err := NewCache(&MockProvider{Dim: 8, Fail: true}, 16)
	require.NoError(t, err)

	_, err = cache.GetOrCreate(context.Background(), "text")
	require.Error(t, err)
	require.Equal(t, 0, cache.Len())
}
