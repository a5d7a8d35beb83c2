package kv

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store used by tests and ephemeral setups.
//
// It honors the same conditional-write contract as PebbleStore and can be
// told to reject conditional writes to simulate concurrent writers.
type MemoryStore struct {
	mu       sync.Mutex
	items    map[string]memEntry
	tombs    map[string]uint64
	rejects  int
	readErr  error
	writeErr error
}

type memEntry struct {
	value []byte
	rev   uint64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]memEntry), tombs: make(map[string]uint64)}
}

// RejectNextConditionalWrites makes the next n SetIfMatch calls report
// modified=false, bumping the revision as a racing writer would have.
func (s *MemoryStore) RejectNextConditionalWrites(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejects = n
}

// FailReads makes all reads return err until called with nil.
func (s *MemoryStore) FailReads(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErr = err
}

// FailWrites makes all writes return err until called with nil.
func (s *MemoryStore) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

// Get returns the value for key, or ok=false when absent.
func (s *MemoryStore) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	value, _, ok, err := s.GetWithVersion(ctx, key)
	return value, ok, err
}

// GetWithVersion returns the value and its version tag.
func (s *MemoryStore) GetWithVersion(_ context.Context, key []byte) ([]byte, Version, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, NoVersion, false, s.readErr
	}
	e, ok := s.items[string(key)]
	if !ok {
		return nil, NoVersion, false, nil
	}
	return append([]byte(nil), e.value...), versionFor(e.rev), true, nil
}

// Set unconditionally overwrites the key.
func (s *MemoryStore) Set(_ context.Context, key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	rev := s.baseRevision(key)
	s.items[string(key)] = memEntry{value: append([]byte(nil), value...), rev: rev + 1}
	delete(s.tombs, string(key))
	return nil
}

// SetIfMatch writes the value only if the current version matches ver.
func (s *MemoryStore) SetIfMatch(_ context.Context, key, value []byte, ver Version) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return false, s.writeErr
	}
	e, ok := s.items[string(key)]
	rev := s.baseRevision(key)
	if s.rejects > 0 {
		s.rejects--
		// A concurrent writer won this round: advance the revision so the
		// caller's reload observes fresh state.
		s.items[string(key)] = memEntry{value: e.value, rev: rev + 1}
		return false, nil
	}
	current := NoVersion
	if ok {
		current = versionFor(e.rev)
	}
	if current != ver {
		return false, nil
	}
	s.items[string(key)] = memEntry{value: append([]byte(nil), value...), rev: rev + 1}
	delete(s.tombs, string(key))
	return true, nil
}

// Delete removes the key, remembering its revision for any later recreate
// so stale version tags cannot match across incarnations.
func (s *MemoryStore) Delete(_ context.Context, key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	if e, ok := s.items[string(key)]; ok {
		s.tombs[string(key)] = e.rev
	}
	delete(s.items, string(key))
	return nil
}

// baseRevision is the revision the next write builds on: the live entry's,
// or the tombstone left by a delete. Callers hold s.mu.
func (s *MemoryStore) baseRevision(key []byte) uint64 {
	if e, ok := s.items[string(key)]; ok {
		return e.rev
	}
	return s.tombs[string(key)]
}

// Len reports the number of stored keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
