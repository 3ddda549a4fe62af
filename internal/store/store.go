// Package store provides a generic in-memory entity store with
// store-assigned ids and per-entry locking.
//
// A Store owns the canonical copy of every entity inserted into it.
// Callers interact with entities exclusively through Handles, which
// mediate all reads and writes behind a per-entry RWMutex. The store's
// own lock only guards map structure; it is never held while an entry
// lock is acquired.
package store

import "sync"

// Entity is implemented by anything that can live in a Store. The id is
// assigned by the store at insertion and must not be changed afterwards.
type Entity interface {
	EntityID() uint32
	SetEntityID(id uint32)
}

// Handle is a shared, lock-mediated reference to a stored entity.
type Handle[T Entity] struct {
	mu    sync.RWMutex
	value T
}

// View calls f with the entity under a read lock.
func (h *Handle[T]) View(f func(T)) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	f(h.value)
}

// Update calls f with the entity under a write lock.
func (h *Handle[T]) Update(f func(T)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	f(h.value)
}

// ID returns the entity's store-assigned id.
func (h *Handle[T]) ID() uint32 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.value.EntityID()
}

// Store is an id-keyed concurrent map of entities.
type Store[T Entity] struct {
	mu      sync.RWMutex
	nextID  uint32
	entries map[uint32]*Handle[T]
}

// New creates an empty store. Ids start at 0 and increase by one per
// insert; wraparound at the uint32 limit is a design limit, not handled.
func New[T Entity]() *Store[T] {
	return &Store[T]{
		entries: make(map[uint32]*Handle[T]),
	}
}

// Insert assigns the next id to value and stores it, returning the
// handle through which all further access goes.
func (s *Store[T]) Insert(value T) *Handle[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	value.SetEntityID(id)

	h := &Handle[T]{value: value}
	s.entries[id] = h
	return h
}

// Get returns the handle for id, or false if no such entry exists.
func (s *Store[T]) Get(id uint32) (*Handle[T], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.entries[id]
	return h, ok
}

// Contains reports whether an entry with the given id exists.
func (s *Store[T]) Contains(id uint32) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[id]
	return ok
}

// Remove deletes the entry with the given id. Removing a missing id is
// a no-op. Outstanding handles stay valid; they just no longer resolve
// through the store.
func (s *Store[T]) Remove(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
}

// RemoveHandle resolves the handle's id and removes that entry.
func (s *Store[T]) RemoveHandle(h *Handle[T]) {
	s.Remove(h.ID())
}

// All returns a snapshot of every handle at call time. The slice is not
// live: entries inserted or removed afterwards are not reflected.
// Iteration order is arbitrary.
func (s *Store[T]) All() []*Handle[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	handles := make([]*Handle[T], 0, len(s.entries))
	for _, h := range s.entries {
		handles = append(handles, h)
	}
	return handles
}

// Find returns the first entry matching pred, in arbitrary order. The
// store lock is released before entry locks are taken, so pred only
// ever runs with a single entity lock held.
func (s *Store[T]) Find(pred func(T) bool) (*Handle[T], bool) {
	for _, h := range s.All() {
		var match bool
		h.View(func(v T) {
			match = pred(v)
		})
		if match {
			return h, true
		}
	}
	return nil, false
}

// Len returns the number of entries.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
