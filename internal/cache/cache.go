// Package cache is the console's query cache for daemon reads.
//
// Keys are ordered segments such as ("instances", "web1", "default").
// Invalidating a prefix drops every entry whose key starts with those
// segments, so ("instances") clears list and detail entries alike.
package cache

import (
	"context"
	"log"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Key namespaces.
const (
	Instances = "instances"
	Networks  = "networks"
	Profiles  = "profiles"
	Storage   = "storage"
	ISOs      = "isos"
	Members   = "members"
	Settings  = "settings"
)

const (
	DefaultTTL             = 30 * time.Second
	DefaultCleanupInterval = 5 * time.Minute

	sep = "\x1f"
)

// Cache wraps go-cache with segment keys.
type Cache struct {
	ttl   time.Duration
	items *gocache.Cache
}

// New creates a cache whose entries expire after ttl. A ttl <= 0 uses DefaultTTL.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ttl:   ttl,
		items: gocache.New(ttl, DefaultCleanupInterval),
	}
}

func joinKey(parts []string) string {
	return strings.Join(parts, sep)
}

// Get returns the value stored under key.
func (c *Cache) Get(key ...string) (interface{}, bool) {
	return c.items.Get(joinKey(key))
}

// Set stores value under key with the cache's ttl.
func (c *Cache) Set(value interface{}, key ...string) {
	c.items.Set(joinKey(key), value, gocache.DefaultExpiration)
}

// Invalidate removes the entry for prefix and every entry below it.
// Invalidate() with no segments flushes the cache.
func (c *Cache) Invalidate(prefix ...string) {
	if len(prefix) == 0 {
		c.items.Flush()
		return
	}
	p := joinKey(prefix)
	for k := range c.items.Items() {
		if k == p || strings.HasPrefix(k, p+sep) {
			c.items.Delete(k)
		}
	}
}

// Len returns the number of unexpired entries.
func (c *Cache) Len() int {
	return c.items.ItemCount()
}

// Load returns the cached value for key, or calls fetch and caches its
// result. Errors are not cached.
func Load[T any](ctx context.Context, c *Cache, key []string, fetch func(context.Context) (T, error)) (T, error) {
	if v, ok := c.Get(key...); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
		log.Printf("[cache] wrong type for key %s, refetching", strings.Join(key, "/"))
	}

	v, err := fetch(ctx)
	if err != nil {
		return v, err
	}
	c.Set(v, key...)
	return v, nil
}
