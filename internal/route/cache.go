// Package route resolves an incoming request path to a configured
// Endpoint plus the remainder path, backed by a flush-on-reload cache.
package route

import (
	"sync"

	"github.com/findelabs/proxima/internal/config"
	"github.com/findelabs/proxima/internal/path"
)

// entry is what the cache stores per prefix.
type entry struct {
	endpoint *config.Endpoint
	suffix   path.ProxyPath
}

// Cache maps a normalized path prefix to its resolved Endpoint and
// ProxyPath. Reads never block each other; writes (first insert, reload
// flush) are exclusive. There is no size/age eviction — lifetime is one
// config generation.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]entry)}
}

// Clear empties the cache under the write lock. The server's reload
// path does not call it: it builds a fresh Cache for each config
// generation instead.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

func (c *Cache) get(prefix string) (entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[prefix]
	return e, ok
}

func (c *Cache) set(prefix string, e entry) {
	c.mu.Lock()
	c.entries[prefix] = e
	c.mu.Unlock()
}

// Resolver resolves request paths against a live endpoint map, caching
// the result per prefix.
type Resolver struct {
	cache     *Cache
	endpoints map[string]*config.Endpoint
}

// NewResolver builds a Resolver over endpoints backed by cache. A cache
// reused across config generations must be Clear()ed first; the server
// instead passes a new Cache per generation.
func NewResolver(cache *Cache, endpoints map[string]*config.Endpoint) *Resolver {
	return &Resolver{cache: cache, endpoints: endpoints}
}

// ErrNotFound is returned when the path's prefix matches no endpoint.
var ErrNotFound = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "no endpoint matches request path" }

// Resolve strips the leading "/" from p, splits it once on "/" into
// (prefix, suffix), and returns the cached (Endpoint, ProxyPath) for that
// prefix, populating the cache on first lookup.
func (r *Resolver) Resolve(p string) (*config.Endpoint, path.ProxyPath, error) {
	pp := path.New(p)

	if e, ok := r.cache.get(pp.Prefix); ok {
		return e.endpoint, e.suffix, nil
	}

	ep, ok := r.endpoints[pp.Prefix]
	if !ok {
		return nil, path.ProxyPath{}, ErrNotFound
	}

	e := entry{endpoint: ep, suffix: pp}
	r.cache.set(pp.Prefix, e)
	return e.endpoint, e.suffix, nil
}
