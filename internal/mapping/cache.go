package mapping

import (
	"sync"
	"time"
)

// DefaultTTL is the cache entry lifetime when none is configured.
const DefaultTTL = 300 * time.Second

// listKey identifies a connector's full mapping list in the cache.
type listKey struct {
	tenantID    string
	connectorID string
}

type keyEntry struct {
	mapping   FieldMapping
	miss      bool // negative entry: key is known to have no active mapping
	expiresAt time.Time
}

type listEntry struct {
	mappings  []FieldMapping
	expiresAt time.Time
}

// Cache is the explicit read-through cache in front of the mapping backend.
// It is constructed with its TTL and passed by handle to every component
// that needs it; invalidation is a method call, never an ambient side
// effect.
//
// Safe for concurrent use. Eviction on write is synchronous: once
// InvalidateKey returns, no reader in this process can observe the stale
// entry (read-your-writes within the process; cross-process staleness up to
// the TTL is accepted for other keys).
type Cache struct {
	mu    sync.RWMutex
	ttl   time.Duration
	now   func() time.Time
	keys  map[Key]keyEntry
	lists map[listKey]listEntry
}

// NewCache creates a cache with the given TTL. A non-positive TTL falls
// back to DefaultTTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ttl:   ttl,
		now:   time.Now,
		keys:  make(map[Key]keyEntry),
		lists: make(map[listKey]listEntry),
	}
}

// GetKey returns the cached mapping for key. The second result reports a
// cached negative entry (known miss); the third reports whether the cache
// held a live entry at all.
func (c *Cache) GetKey(key Key) (FieldMapping, bool, bool) {
	c.mu.RLock()
	entry, ok := c.keys[key]
	c.mu.RUnlock()
	if !ok || c.now().After(entry.expiresAt) {
		return FieldMapping{}, false, false
	}
	return entry.mapping, entry.miss, true
}

// PutKey caches a mapping hit.
func (c *Cache) PutKey(m FieldMapping) {
	c.mu.Lock()
	c.keys[m.Key()] = keyEntry{mapping: m, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// PutMiss caches a negative lookup so repeated unknown fields do not hammer
// the backend.
func (c *Cache) PutMiss(key Key) {
	c.mu.Lock()
	c.keys[key] = keyEntry{miss: true, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// GetList returns the cached active-mapping list for a connector.
func (c *Cache) GetList(tenantID, connectorID string) ([]FieldMapping, bool) {
	c.mu.RLock()
	entry, ok := c.lists[listKey{tenantID, connectorID}]
	c.mu.RUnlock()
	if !ok || c.now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.mappings, true
}

// PutList caches a connector's active-mapping list.
func (c *Cache) PutList(tenantID, connectorID string, mappings []FieldMapping) {
	c.mu.Lock()
	c.lists[listKey{tenantID, connectorID}] = listEntry{
		mappings:  mappings,
		expiresAt: c.now().Add(c.ttl),
	}
	c.mu.Unlock()
}

// Invalidate evicts the single-key entry and the enclosing connector list
// in one critical section. Called by Store.Write before the write returns.
func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	delete(c.keys, key)
	delete(c.lists, listKey{key.TenantID, key.ConnectorID})
	c.mu.Unlock()
}

// Len reports the number of live single-key entries. Used in tests.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.keys)
}
