package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Gateway wraps an Embedder with an LRU cache keyed by a content hash of the
// input text. The gateway itself never retries: retry-on-query should be
// immediate while retry-on-ingest may be deferred, so retry policy belongs
// to the caller.
type Gateway struct {
	embedder Embedder
	cache    *Cache
}

// NewGateway creates a caching gateway over embedder with the given cache capacity.
func NewGateway(embedder Embedder, cacheSize int) *Gateway {
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	return &Gateway{
		embedder: embedder,
		cache:    NewCache(cacheSize),
	}
}

// contentHash returns the cache key for text.
func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Embed returns the embedding for text, consulting the cache first.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	key := contentHash(text)
	if vec, ok := g.cache.Get(key); ok {
		return vec, nil
	}
	vec, err := g.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) != g.embedder.Dimensions() {
		return nil, fmt.Errorf("%w: model returned %d dimensions, expected %d",
			ErrInvalidInput, len(vec), g.embedder.Dimensions())
	}
	g.cache.Set(key, vec)
	return vec, nil
}

// EmbedBatch embeds each text, reusing cached entries where available.
func (g *Gateway) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := g.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed batch [%d]: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the embedding dimension of the underlying model.
func (g *Gateway) Dimensions() int {
	return g.embedder.Dimensions()
}

// CacheLen returns the number of cached embeddings (for status reporting).
func (g *Gateway) CacheLen() int {
	return g.cache.Len()
}

// Close closes the underlying embedder.
func (g *Gateway) Close() error {
	return g.embedder.Close()
}
