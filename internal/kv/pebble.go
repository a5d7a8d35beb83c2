package kv

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"sync"

	pebblestore "github.com/serhalp/queue-and-eh/internal/storage/pebble"
)

// PebbleStore implements Store on top of the Pebble wrapper.
//
// Each value is stored as an 8-byte big-endian revision counter followed by
// the payload. The counter renders as the opaque version tag; conditional
// writes are serialized behind a mutex, which makes the read-compare-write
// sequence atomic on a single node.
//
// Deleted keys leave their last revision behind in tombs, so a key recreated
// after a delete continues counting instead of restarting at 1. Without
// that, a version tag held across the delete could spuriously match the new
// incarnation.
type PebbleStore struct {
	db    *pebblestore.DB
	mu    sync.Mutex
	tombs map[string]uint64
}

// NewPebbleStore wraps an open Pebble DB.
func NewPebbleStore(db *pebblestore.DB) *PebbleStore {
	return &PebbleStore{db: db, tombs: make(map[string]uint64)}
}

const revisionLen = 8

func encodeValue(rev uint64, payload []byte) []byte {
	buf := make([]byte, revisionLen+len(payload))
	binary.BigEndian.PutUint64(buf[:revisionLen], rev)
	copy(buf[revisionLen:], payload)
	return buf
}

func decodeValue(raw []byte) (uint64, []byte, error) {
	if len(raw) < revisionLen {
		return 0, nil, fmt.Errorf("kv: corrupt value, %d bytes", len(raw))
	}
	return binary.BigEndian.Uint64(raw[:revisionLen]), raw[revisionLen:], nil
}

func versionFor(rev uint64) Version {
	return Version(strconv.FormatUint(rev, 16))
}

// Get returns the payload for key, or ok=false when absent.
func (s *PebbleStore) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	value, _, ok, err := s.GetWithVersion(ctx, key)
	return value, ok, err
}

// GetWithVersion returns the payload and its version tag.
func (s *PebbleStore) GetWithVersion(_ context.Context, key []byte) ([]byte, Version, bool, error) {
	raw, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return nil, NoVersion, false, nil
		}
		return nil, NoVersion, false, err
	}
	rev, payload, err := decodeValue(raw)
	if err != nil {
		return nil, NoVersion, false, err
	}
	return payload, versionFor(rev), true, nil
}

// Set unconditionally overwrites the key, bumping its revision.
func (s *PebbleStore) Set(_ context.Context, key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rev, _, err := s.currentRevision(key)
	if err != nil {
		return err
	}
	if err := s.db.Set(key, encodeValue(rev+1, value)); err != nil {
		return err
	}
	delete(s.tombs, string(key))
	return nil
}

// SetIfMatch writes the value only if the current version matches ver.
func (s *PebbleStore) SetIfMatch(_ context.Context, key, value []byte, ver Version) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rev, present, err := s.currentRevision(key)
	if err != nil {
		return false, err
	}
	current := NoVersion
	if present {
		current = versionFor(rev)
	}
	if current != ver {
		return false, nil
	}
	if err := s.db.Set(key, encodeValue(rev+1, value)); err != nil {
		return false, err
	}
	delete(s.tombs, string(key))
	return true, nil
}

// Delete removes the key, remembering its revision for any later recreate.
func (s *PebbleStore) Delete(_ context.Context, key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rev, present, err := s.currentRevision(key)
	if err != nil {
		return err
	}
	if present {
		s.tombs[string(key)] = rev
	}
	return s.db.Delete(key)
}

// currentRevision returns the revision the next write should build on. For
// absent keys it resumes from the tombstone, or 0 when the key was never
// written. Callers hold s.mu.
func (s *PebbleStore) currentRevision(key []byte) (rev uint64, present bool, err error) {
	raw, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return s.tombs[string(key)], false, nil
		}
		return 0, false, err
	}
	rev, _, err = decodeValue(raw)
	return rev, true, err
}
