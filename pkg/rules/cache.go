package rules

import (
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
)

// ProgramCache stores compiled programs. Evaluators prefix keys with their
// engine name so one cache can be shared.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// DefaultCacheEntries bounds NewProgramCache when maxEntries is not positive.
const DefaultCacheEntries = 1024

// Cache is a bounded ProgramCache backed by ristretto.
type Cache struct {
	cache *ristretto.Cache[string, any]
}

// NewProgramCache returns a cache holding roughly maxEntries programs.
func NewProgramCache(maxEntries int64) (*Cache, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheEntries
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, any]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("rules: create program cache: %w", err)
	}
	return &Cache{cache: cache}, nil
}

// Get implements ProgramCache.
func (c *Cache) Get(key string) (any, bool) {
	if c == nil || c.cache == nil {
		return nil, false
	}
	return c.cache.Get(key)
}

// Set implements ProgramCache. Each program costs one entry; Set waits for
// the write buffer so a following Get observes it.
func (c *Cache) Set(key string, value any) {
	if c == nil || c.cache == nil {
		return
	}
	c.cache.Set(key, value, 1)
	c.cache.Wait()
}

// Close releases the cache goroutines.
func (c *Cache) Close() {
	if c != nil && c.cache != nil {
		c.cache.Close()
	}
}

func cacheKey(engine, expression string) string {
	return engine + ":" + expression
}
