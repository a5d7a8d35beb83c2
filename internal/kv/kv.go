package kv

import "context"

// Version is an opaque token identifying a stored value's revision. It is
// returned by GetWithVersion and must match on SetIfMatch for the write to be
// applied. The zero value NoVersion marks an absent key.
type Version string

// NoVersion is the version of an absent key.
const NoVersion Version = ""

// Store is a namespaced blob store with whole-value conditional writes.
//
// SetIfMatch with a stale or mismatched version reports modified=false rather
// than an error; Set (no condition) always overwrites. This is the only
// coordination primitive the repositories build on.
type Store interface {
	// Get returns the value for key, or ok=false when absent.
	Get(ctx context.Context, key []byte) (value []byte, ok bool, err error)

	// GetWithVersion returns the value and its current version tag, or
	// ok=false and NoVersion when absent.
	GetWithVersion(ctx context.Context, key []byte) (value []byte, ver Version, ok bool, err error)

	// Set unconditionally writes the value.
	Set(ctx context.Context, key, value []byte) error

	// SetIfMatch writes the value only if the key's current version equals
	// ver. A ver of NoVersion requires the key to be absent. Returns
	// modified=false on a version mismatch.
	SetIfMatch(ctx context.Context, key, value []byte, ver Version) (modified bool, err error)

	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key []byte) error
}
