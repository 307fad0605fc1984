package identity

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"
)

// DefaultCacheSize is the number of derivations a Cache keeps by default.
const DefaultCacheSize = 64

type cacheKey struct {
	seed  int64
	depth int
}

// Cache memoizes Derive. Baselines are immutable, so hits share the chain
// with earlier callers.
type Cache struct {
	arc    *lru.ARCCache
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCache creates a cache holding up to size derivations.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	arc, err := lru.NewARC(size)
	if err != nil {
		return nil, err
	}
	return &Cache{arc: arc}, nil
}

// Derive returns the cached baseline for (seed, depth), deriving it on a
// miss. Errors are not cached.
func (c *Cache) Derive(seed int64, depth int) (Baseline, error) {
	key := cacheKey{seed: seed, depth: depth}
	if v, ok := c.arc.Get(key); ok {
		c.hits.Add(1)
		return v.(Baseline), nil
	}
	c.misses.Add(1)
	b, err := Derive(seed, depth)
	if err != nil {
		return Baseline{}, err
	}
	c.arc.Add(key, b)
	return b, nil
}

// Len returns the number of cached derivations.
func (c *Cache) Len() int { return c.arc.Len() }

// Stats returns hit and miss counts since creation.
func (c *Cache) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}
