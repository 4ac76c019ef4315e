package state

import (
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Observer receives cache events. Implemented by the metrics collector.
type Observer interface {
	CacheHit(op string)
	CacheMiss(op string)
	CacheEvict(name string, entries int)
}

// Key identifies one derived result: the source name, the operation that
// produced it and the operation's parameters.
type Key struct {
	Name   string
	Op     string
	Params string
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%s", k.Name, k.Op, k.Params)
}

type entry struct {
	version string
	value   any
}

// Cache holds parsed datasets and derived results. Every entry is tagged with
// the version of the source it was computed from; a lookup with a different
// version misses and drops all stale entries of that source.
type Cache struct {
	mu      sync.RWMutex
	entries map[Key]entry
	flight  singleflight.Group
	obs     Observer
}

// NewCache creates an empty cache. obs may be nil.
func NewCache(obs Observer) *Cache {
	return &Cache{
		entries: make(map[Key]entry),
		obs:     obs,
	}
}

// Load returns the cached value for key at version, computing and storing it
// on a miss. Concurrent loads of the same key share one computation.
// An empty version disables caching for the call.
func Load[T any](c *Cache, key Key, version string, compute func() (T, error)) (T, error) {
	if version == "" {
		return compute()
	}

	if v, ok := c.lookup(key, version); ok {
		c.hit(key.Op)
		return v.(T), nil
	}
	c.miss(key.Op)

	res, err, _ := c.flight.Do(key.String()+"@"+version, func() (any, error) {
		if v, ok := c.lookup(key, version); ok {
			return v, nil
		}
		v, err := compute()
		if err != nil {
			return nil, err
		}
		c.store(key, version, v)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return res.(T), nil
}

func (c *Cache) lookup(key Key, version string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if e.version != version {
		c.dropStale(key.Name, version)
		return nil, false
	}
	return e.value, true
}

func (c *Cache) store(key Key, version string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{version: version, value: value}
}

func (c *Cache) dropStale(name, version string) {
	c.mu.Lock()
	n := 0
	for k, e := range c.entries {
		if k.Name == name && e.version != version {
			delete(c.entries, k)
			n++
		}
	}
	c.mu.Unlock()

	if n > 0 {
		slog.Debug("dropped stale cache entries", "name", name, "entries", n)
		if c.obs != nil {
			c.obs.CacheEvict(name, n)
		}
	}
}

// Evict removes every entry derived from the named source and returns how
// many were removed.
func (c *Cache) Evict(name string) int {
	c.mu.Lock()
	n := 0
	for k := range c.entries {
		if k.Name == name {
			delete(c.entries, k)
			n++
		}
	}
	c.mu.Unlock()

	if n > 0 && c.obs != nil {
		c.obs.CacheEvict(name, n)
	}
	return n
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) hit(op string) {
	if c.obs != nil {
		c.obs.CacheHit(op)
	}
}

func (c *Cache) miss(op string) {
	if c.obs != nil {
		c.obs.CacheMiss(op)
	}
}
