// Package cache implements the Embedding Cache (spec.md §4.2, C4): a
// bounded, process-local cache mapping text to its embedding vector, owned
// exclusively by the Memory Core Facade (spec.md §3).
//
// Grounded on the teacher's internal/embedding/ollama.go embeddingCache,
// which keys on a sha256 prefix of model+text and evicts FIFO. spec.md §4.2
// requires true least-recently-used eviction rather than insertion-order
// eviction, so this reimplements the same cache-key idiom on top of
// hashicorp/golang-lru/v2, which tracks recency on both Get and Add.
package cache

import (
	"crypto/sha256"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultCapacity = 1000

// Cache is a bounded LRU cache of text -> embedding vector.
type Cache struct {
	inner *lru.Cache[string, []float32]
}

// New builds a Cache with the given capacity. A non-positive capacity falls
// back to the spec default of 1000 entries.
func New(capacity int) (*Cache, error) {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	inner, err := lru.New[string, []float32](capacity)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &Cache{inner: inner}, nil
}

// Key returns the stable cache key for a given text under a given model,
// so entries from different embedding models never collide.
func Key(model, text string) string {
	h := sha256.Sum256([]byte(model + "\x00" + text))
	return fmt.Sprintf("%x", h[:16])
}

// Get returns the cached embedding for key, marking it most-recently-used.
func (c *Cache) Get(key string) ([]float32, bool) {
	return c.inner.Get(key)
}

// Set inserts or refreshes the embedding for key, evicting the least
// recently used entry if the cache is at capacity.
func (c *Cache) Set(key string, embedding []float32) {
	c.inner.Add(key, embedding)
}

// Len reports the current number of cached entries.
func (c *Cache) Len() int {
	return c.inner.Len()
}

// Purge clears the cache, for tests and administrative resets.
func (c *Cache) Purge() {
	c.inner.Purge()
}
