// Package core provides the fundamental data structures and logic for the
// causal knowledge graph.
//
// This file implements a thread-safe, in-memory key-value store. The graph's
// adjacency lists live in it under "rel:" (outgoing) and "rev:" (incoming)
// keys. It uses a read-write mutex to allow concurrent reads while ensuring
// exclusive access for writes.

package core

import "sync"

// KVStore is a thread-safe, in-memory key-value store.
type KVStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewKVStore creates and returns a new, empty KVStore instance.
func NewKVStore() *KVStore {
	return &KVStore{
		data: make(map[string][]byte),
	}
}

// Set adds or updates a value for a given key.
func (s *KVStore) Set(key string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = value
}

// Get retrieves the value for a given key.
// It returns the value and a boolean indicating whether the key was found.
func (s *KVStore) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, found := s.data[key]
	return value, found
}

// Update runs fn on the current value of key under the write lock and stores
// the returned value. Returning nil deletes the key. A non-nil error aborts
// the update and leaves the stored value untouched.
func (s *KVStore) Update(key string, fn func(old []byte, found bool) ([]byte, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, found := s.data[key]
	next, err := fn(old, found)
	if err != nil {
		return err
	}
	if next == nil {
		delete(s.data, key)
		return nil
	}
	s.data[key] = next
	return nil
}

// Snapshot returns a shallow copy of the data for serialization.
func (s *KVStore) Snapshot() map[string][]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]byte, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

// Restore replaces the whole content of the store.
func (s *KVStore) Restore(data map[string][]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make(map[string][]byte, len(data))
	for k, v := range data {
		s.data[k] = v
	}
}
