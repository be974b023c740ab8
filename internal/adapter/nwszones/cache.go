package nwszones

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/tribal-hazard-alerts/internal/geo"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/resolver"
)

// Looker fetches one zone outline.
type Looker interface {
	Lookup(ctx context.Context, id string) (*geo.Geometry, error)
}

// CachedZones is a resolver.ZoneTable that consults a local table first and
// falls back to remote lookups kept in an LRU cache.
type CachedZones struct {
	local   resolver.ZoneTable
	remote  Looker
	timeout time.Duration
	logger  *slog.Logger
	cache   *lruCache
}

// NewCachedZones wraps local, which may be nil. Each remote lookup is bounded
// by timeout and by the caller's context.
func NewCachedZones(local resolver.ZoneTable, remote Looker, maxEntries int, timeout time.Duration, logger *slog.Logger) *CachedZones {
	return &CachedZones{
		local:   local,
		remote:  remote,
		timeout: timeout,
		logger:  logger,
		cache:   newLRUCache(maxEntries),
	}
}

// Zone implements resolver.ZoneTable. Nothing is fetched once ctx is done.
func (c *CachedZones) Zone(ctx context.Context, id string) (geo.Geometry, bool) {
	if c.local != nil {
		if g, ok := c.local.Zone(ctx, id); ok {
			return g, true
		}
	}
	if g, ok := c.cache.get(id); ok {
		return g, true
	}

	if ctx.Err() != nil {
		return geo.Geometry{}, false
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	g, err := c.remote.Lookup(ctx, id)
	if err != nil {
		c.logger.Warn("zone lookup failed", "zone", id, "error", err)
		return geo.Geometry{}, false
	}
	// Only cache usable outlines so missing zones are retried next cycle.
	if g == nil || g.Validate() != nil {
		return geo.Geometry{}, false
	}
	c.cache.put(id, *g)
	return *g, true
}

// Len reports the number of cached remote zones.
func (c *CachedZones) Len() int {
	c.cache.mu.Lock()
	defer c.cache.mu.Unlock()
	return len(c.cache.entries)
}

// lruCache is a simple thread-safe LRU cache of zone outlines.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value geo.Geometry
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (geo.Geometry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return geo.Geometry{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value geo.Geometry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
