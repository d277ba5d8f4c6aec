package application

import (
	"sync"
	"time"
)

// conflictCache keeps the last conflict report of each owner until that
// owner's calendar changes or the entry expires. Every Invalidate bumps the
// owner's generation; Store ignores reports computed under an older one.
type conflictCache struct {
	mu          sync.RWMutex
	now         func() time.Time
	ttl         time.Duration
	maxEntries  int
	entries     map[string]conflictCacheEntry
	generations map[string]uint64
}

type conflictCacheEntry struct {
	conflicts []ConflictReport
	expiresAt time.Time
}

func newConflictCache(ttl time.Duration, maxEntries int, now func() time.Time) *conflictCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 128
	}
	if now == nil {
		now = time.Now
	}
	return &conflictCache{
		now:         now,
		ttl:         ttl,
		maxEntries:  maxEntries,
		entries:     make(map[string]conflictCacheEntry),
		generations: make(map[string]uint64),
	}
}

func (c *conflictCache) Get(ownerID string) ([]ConflictReport, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	entry, ok := c.entries[ownerID]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, ownerID)
		c.mu.Unlock()
		return nil, false
	}
	return cloneConflicts(entry.conflicts), true
}

// Generation returns the owner's current invalidation count. Capture it
// before reading the events a report is built from.
func (c *conflictCache) Generation(ownerID string) uint64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generations[ownerID]
}

// Store caches conflicts unless the owner was invalidated after generation
// was captured.
func (c *conflictCache) Store(ownerID string, generation uint64, conflicts []ConflictReport) {
	if c == nil {
		return
	}
	cloned := cloneConflicts(conflicts)
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generations[ownerID] != generation {
		return
	}
	c.cleanupLocked()
	if _, exists := c.entries[ownerID]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[ownerID] = conflictCacheEntry{conflicts: cloned, expiresAt: expiry}
}

// Invalidate drops the entry of one owner and bumps its generation.
func (c *conflictCache) Invalidate(ownerID string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.entries, ownerID)
	c.generations[ownerID]++
	c.mu.Unlock()
}

func (c *conflictCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// evictOneLocked removes the entry closest to expiry.
func (c *conflictCache) evictOneLocked() {
	var (
		victim string
		oldest time.Time
	)
	for key, entry := range c.entries {
		if victim == "" || entry.expiresAt.Before(oldest) {
			victim, oldest = key, entry.expiresAt
		}
	}
	delete(c.entries, victim)
}

func cloneConflicts(conflicts []ConflictReport) []ConflictReport {
	if len(conflicts) == 0 {
		return nil
	}
	out := make([]ConflictReport, len(conflicts))
	copy(out, conflicts)
	return out
}
