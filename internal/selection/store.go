package selection

import (
	"sync"

	"github.com/primetime43/PlexSubSetter/internal/plex"
)

// Store holds the set of leaf items the user has checked. Containers
// (shows, seasons) are resolved to their leaf descendants before they reach
// the store, so membership is always directly actionable.
//
// All methods are safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	items map[string]plex.Item
}

// NewStore creates an empty selection store
func NewStore() *Store {
	return &Store{items: make(map[string]plex.Item)}
}

// Add inserts leaf items into the selection and returns the new cardinality.
// Duplicate adds and non-leaf items are ignored.
func (s *Store) Add(items []plex.Item) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		if !item.IsLeaf() {
			continue
		}
		s.items[item.RatingKey] = item
	}
	return len(s.items)
}

// Remove deletes items by rating key and returns the new cardinality.
// Removing a non-member is a no-op.
func (s *Store) Remove(keys []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.items, key)
	}
	return len(s.items)
}

// Clear empties the selection. Snapshots taken before the clear are
// unaffected.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]plex.Item)
}

// Count returns the current cardinality
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Contains reports whether the rating key is selected
func (s *Store) Contains(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.items[key]
	return ok
}

// Keys returns the selected rating keys
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.items))
	for key := range s.items {
		keys = append(keys, key)
	}
	return keys
}

// Snapshot returns an immutable copy of the selected items for a task to
// consume. Concurrent mutation of the store does not affect the copy.
func (s *Store) Snapshot() []plex.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]plex.Item, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, item)
	}
	return items
}
