package embedding

import (
	"container/list"
	"context"
	"sync"

	"github.com/hyperjump/cursobot/internal/metrics"
)

// Cache is an LRU cache for embeddings keyed by text.
type Cache struct {
	capacity int
	items    map[string]*list.Element
	lru      *list.List
	mu       sync.Mutex
}

type cacheEntry struct {
	key   string
	value []float32
}

// NewCache creates a cache holding at most capacity embeddings.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	return &Cache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get returns the cached embedding for key if present.
func (c *Cache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.lru.MoveToFront(elem)
		metrics.EmbeddingCacheHits.Inc()
		return elem.Value.(*cacheEntry).value, true
	}
	metrics.EmbeddingCacheMisses.Inc()
	return nil, false
}

// Set stores the embedding for key, evicting the least recently used entry when full.
func (c *Cache) Set(key string, value []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*cacheEntry).value = value
		return
	}

	c.items[key] = c.lru.PushFront(&cacheEntry{key: key, value: value})
	if c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		c.lru.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).key)
	}
}

// Len returns the number of cached embeddings.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// CachedEmbedder memoises another Embedder.
type CachedEmbedder struct {
	Embedder
	cache *Cache
}

// WithCache wraps e with an LRU cache of the given size.
func WithCache(e Embedder, size int) *CachedEmbedder {
	return &CachedEmbedder{Embedder: e, cache: NewCache(size)}
}

// Embed returns the cached embedding or computes and stores it.
// Callers must not modify the returned slice.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		return v, nil
	}
	v, err := c.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(text, v)
	return v, nil
}
