package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	ierrors "github.com/inkstonehq/inkstone/internal/errors"
)

// DefaultCacheCapacity bounds the cache when the profile does not set one.
const DefaultCacheCapacity = 4096

// Cache memoizes embeddings by content and model. Entries are keyed on the
// hash of the truncated text plus the hash of the model id, so a model change
// never serves vectors computed by a previous model. Eviction is LRU by entry
// count; entries are content-derived and never go stale, so there is no TTL.
type Cache struct {
	provider  Provider
	entries   *lru.Cache[string, []float32]
	group     singleflight.Group
	modelHash string
}

// NewCache wraps provider with a bounded LRU cache of the given capacity.
func NewCache(provider Provider, capacity int) (*Cache, error) {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	entries, err := lru.New[string, []float32](capacity)
	if err != nil {
		return nil, ierrors.Wrap(err, ierrors.CodeInvalidArgument, "failed to create embedding cache")
	}
	return &Cache{
		provider:  provider,
		entries:   entries,
		modelHash: hashString(provider.ModelID()),
	}, nil
}

// GetOrCreate returns the cached vector for text, computing and storing it on
// a miss. Concurrent misses for the same key collapse into one provider call.
func (c *Cache) GetOrCreate(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)
	if vector, ok := c.entries.Get(key); ok {
		return vector, nil
	}

	result, err, _ := c.group.Do(key, func() (any, error) {
		// Re-check: another caller may have filled the entry while this one
		// waited on the flight group.
		if vector, ok := c.entries.Get(key); ok {
			return vector, nil
		}
		vector, err := c.provider.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		c.entries.Add(key, vector)
		slog.Debug("embedding cached",
			slog.String("key", key[:12]),
			slog.Int("dimensions", len(vector)))
		return vector, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]float32), nil
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Purge drops all cached entries.
func (c *Cache) Purge() {
	c.entries.Purge()
}

func (c *Cache) key(text string) string {
	return hashString(Truncate(text)) + ":" + c.modelHash
}

func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
