package embeddings

import (
	"context"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cached memoizes EmbedQuery results in a bounded LRU keyed by the exact
// query text. Document embeddings pass through uncached.
type Cached struct {
	inner   Provider
	cache   *lru.Cache[string, []float32]
	metrics *Metrics
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewCached wraps inner with an LRU of the given size.
func NewCached(inner Provider, size int, metrics *Metrics) (*Cached, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: cache size must be positive", ErrInvalidConfig)
	}
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("creating query cache: %w", err)
	}
	return &Cached{inner: inner, cache: c, metrics: metrics}, nil
}

// EmbedQuery returns a copy of the cached vector when present.
func (c *Cached) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := c.cache.Get(text); ok {
		c.hits.Add(1)
		c.metrics.RecordCacheLookup(ctx, true)
		return append([]float32(nil), vec...), nil
	}
	c.misses.Add(1)
	c.metrics.RecordCacheLookup(ctx, false)

	vec, err := c.inner.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, append([]float32(nil), vec...))
	return vec, nil
}

// EmbedDocuments implements Embedder.
func (c *Cached) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return c.inner.EmbedDocuments(ctx, texts)
}

// Stats returns the hit and miss counts since creation.
func (c *Cached) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Dimension implements Provider.
func (c *Cached) Dimension() int { return c.inner.Dimension() }

// Close purges the cache and closes the wrapped provider.
func (c *Cached) Close() error {
	c.cache.Purge()
	return c.inner.Close()
}
