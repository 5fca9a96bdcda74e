package subcache

import "sync"

// Status is the tri-state subtitle presence flag for an item
type Status int

const (
	StatusUnknown Status = iota
	StatusAbsent
	StatusPresent
)

// String returns the wire name for a status
func (s Status) String() string {
	switch s {
	case StatusPresent:
		return "present"
	case StatusAbsent:
		return "absent"
	default:
		return "unknown"
	}
}

// Cache maps rating keys to subtitle presence. Entries are written only by
// bulk warm tasks and removed by explicit invalidation; a missing entry means
// Unknown and callers render a neutral state.
//
// Writes carry the generation observed when the warmer started. Invalidation
// and clears bump the generation, so a warmer that raced a mutation cannot
// resurrect stale entries.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]Status
	generation uint64
}

// New creates an empty cache
func New() *Cache {
	return &Cache{entries: make(map[string]Status)}
}

// Get returns the cached status for a rating key. found is false when the
// status must be (re)computed.
func (c *Cache) Get(key string) (Status, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	status, ok := c.entries[key]
	if !ok {
		return StatusUnknown, false
	}
	return status, true
}

// Generation returns the current invalidation generation. Warmers capture it
// before querying the remote service and pass it back to Set.
func (c *Cache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// Set writes a presence entry if the cache generation still matches the one
// the caller observed. Returns false when the write was dropped as stale.
func (c *Cache) Set(key string, present bool, generation uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		return false
	}
	if present {
		c.entries[key] = StatusPresent
	} else {
		c.entries[key] = StatusAbsent
	}
	return true
}

// Invalidate removes entries for exactly the given keys and bumps the
// generation so in-flight warm results are discarded. Untouched keys keep
// their prior status.
func (c *Cache) Invalidate(keys []string) {
	if len(keys) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.entries, key)
	}
	c.generation++
}

// Clear removes all entries, used on library switch and teardown
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Status)
	c.generation++
}

// Len returns the number of cached entries
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
