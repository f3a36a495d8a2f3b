// Package cache stores registry metadata between runs.
//
// Caching is off by default: every lookup reaches the registry. The CLI
// enables a [FileCache] with --cache or a [RedisCache] with --redis when the
// same manifest is audited repeatedly or several machines share a registry
// budget.
//
// Keys are built with [MetadataKey] so that both backends agree on layout.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with per-entry TTL.
//
// Get returns (data, true, nil) on a hit and (nil, false, nil) on a miss.
// Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// MetadataKey returns the cache key for a registry metadata document.
func MetadataKey(registry, name, version string) string {
	return "meta:" + registry + ":" + name + "@" + version
}
