package catalog

import (
	"sync"
	"sync/atomic"
	"time"
)

// Store holds the current dataset snapshot. Reads are lock-free; the fetch
// mutex only serializes refresh attempts so concurrent triggers do not both
// hit the network.
type Store struct {
	current atomic.Pointer[Dataset]
	fetchMu sync.Mutex
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the current snapshot, or nil if nothing has been loaded yet.
func (s *Store) Get() *Dataset {
	return s.current.Load()
}

// Set replaces the current snapshot.
func (s *Store) Set(ds *Dataset) {
	s.current.Store(ds)
}

// Loaded reports whether a snapshot is present.
func (s *Store) Loaded() bool {
	return s.current.Load() != nil
}

// Count returns the number of satellites in the current snapshot.
func (s *Store) Count() int {
	ds := s.current.Load()
	if ds == nil {
		return 0
	}
	return len(ds.Satellites)
}

// AgeSeconds returns seconds since the current snapshot was fetched,
// or -1 if the store is empty.
func (s *Store) AgeSeconds() float64 {
	ds := s.current.Load()
	if ds == nil {
		return -1
	}
	return time.Since(ds.FetchedAt).Seconds()
}

// Lock serializes a refresh. Callers must Unlock when done.
func (s *Store) Lock() {
	s.fetchMu.Lock()
}

// Unlock releases the refresh lock.
func (s *Store) Unlock() {
	s.fetchMu.Unlock()
}
