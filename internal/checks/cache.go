package checks

import (
	"context"
)

const (
	cacheProbeKey   = "healthboard_health_check"
	cacheProbeValue = "working"
)

// Cache is the key/value cache under check.
type Cache interface {
	Add(key, value string) bool
	Get(key string) (string, bool)
	Remove(key string) bool
}

// CacheBackend writes a probe key and reads it back.
type CacheBackend struct {
	base
	cache Cache
}

// NewCacheBackend creates a cache check. Cache failures are not critical.
func NewCacheBackend(cache Cache) *CacheBackend {
	return &CacheBackend{
		base:  base{name: "Cache", slug: "cache", critical: false},
		cache: cache,
	}
}

// Check implements Backend.
func (b *CacheBackend) Check(_ context.Context) error {
	b.cache.Add(cacheProbeKey, cacheProbeValue)
	defer b.cache.Remove(cacheProbeKey)

	value, ok := b.cache.Get(cacheProbeKey)
	if !ok {
		return UnexpectedResult("Cache key missing", nil)
	}
	if value != cacheProbeValue {
		return Unavailable("Cache key does not match", nil)
	}
	return nil
}
