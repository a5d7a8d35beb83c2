package kv

import (
	"context"
	"testing"

	pebblestore "github.com/serhalp/queue-and-eh/internal/storage/pebble"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeNever})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return map[string]Store{
		"pebble": NewPebbleStore(db),
		"memory": NewMemoryStore(),
	}
}

func TestGetAbsent(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, ver, ok, err := s.GetWithVersion(ctx, []byte("missing"))
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if ok || ver != NoVersion {
				t.Fatalf("absent key: ok=%v ver=%q", ok, ver)
			}
		})
	}
}

func TestSetBumpsVersion(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := []byte("k")
			if err := s.Set(ctx, key, []byte("v1")); err != nil {
				t.Fatalf("set: %v", err)
			}
			_, v1, ok, err := s.GetWithVersion(ctx, key)
			if err != nil || !ok {
				t.Fatalf("get: ok=%v err=%v", ok, err)
			}
			if err := s.Set(ctx, key, []byte("v2")); err != nil {
				t.Fatalf("set: %v", err)
			}
			got, v2, ok, err := s.GetWithVersion(ctx, key)
			if err != nil || !ok {
				t.Fatalf("get: ok=%v err=%v", ok, err)
			}
			if string(got) != "v2" {
				t.Fatalf("got %q", got)
			}
			if v1 == v2 {
				t.Fatalf("version did not change on overwrite: %q", v1)
			}
		})
	}
}

func TestSetIfMatch(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := []byte("k")

			// Create-if-absent via NoVersion.
			modified, err := s.SetIfMatch(ctx, key, []byte("v1"), NoVersion)
			if err != nil || !modified {
				t.Fatalf("create: modified=%v err=%v", modified, err)
			}

			_, ver, _, err := s.GetWithVersion(ctx, key)
			if err != nil {
				t.Fatalf("get: %v", err)
			}

			// Matching tag succeeds.
			modified, err = s.SetIfMatch(ctx, key, []byte("v2"), ver)
			if err != nil || !modified {
				t.Fatalf("cas: modified=%v err=%v", modified, err)
			}

			// Stale tag is rejected without error.
			modified, err = s.SetIfMatch(ctx, key, []byte("v3"), ver)
			if err != nil {
				t.Fatalf("stale cas errored: %v", err)
			}
			if modified {
				t.Fatalf("stale cas applied")
			}

			got, _, _, err := s.GetWithVersion(ctx, key)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if string(got) != "v2" {
				t.Fatalf("value clobbered by stale write: %q", got)
			}
		})
	}
}

func TestDelete(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := []byte("k")
			if err := s.Set(ctx, key, []byte("v")); err != nil {
				t.Fatalf("set: %v", err)
			}
			if err := s.Delete(ctx, key); err != nil {
				t.Fatalf("delete: %v", err)
			}
			_, ok, err := s.Get(ctx, key)
			if err != nil || ok {
				t.Fatalf("after delete: ok=%v err=%v", ok, err)
			}
			// Deleting an absent key is fine.
			if err := s.Delete(ctx, key); err != nil {
				t.Fatalf("delete absent: %v", err)
			}
		})
	}
}

func TestStaleVersionDoesNotMatchAcrossDelete(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := []byte("k")
			if err := s.Set(ctx, key, []byte("v1")); err != nil {
				t.Fatalf("set: %v", err)
			}
			_, stale, _, err := s.GetWithVersion(ctx, key)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if err := s.Delete(ctx, key); err != nil {
				t.Fatalf("delete: %v", err)
			}

			// Recreate the key; the held tag predates the delete and must
			// not commit against the new incarnation.
			if modified, err := s.SetIfMatch(ctx, key, []byte("v2"), NoVersion); err != nil || !modified {
				t.Fatalf("recreate: modified=%v err=%v", modified, err)
			}
			if modified, err := s.SetIfMatch(ctx, key, []byte("stale"), stale); err != nil || modified {
				t.Fatalf("stale tag committed across delete: modified=%v err=%v", modified, err)
			}

			// The current tag still works.
			_, cur, _, err := s.GetWithVersion(ctx, key)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if modified, err := s.SetIfMatch(ctx, key, []byte("v3"), cur); err != nil || !modified {
				t.Fatalf("current tag: modified=%v err=%v", modified, err)
			}
		})
	}
}

func TestMemoryStoreRejectsConditionalWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.Set(ctx, []byte("k"), []byte("v")); err != nil {
		t.Fatalf("set: %v", err)
	}
	_, ver, _, _ := s.GetWithVersion(ctx, []byte("k"))

	s.RejectNextConditionalWrites(1)
	modified, err := s.SetIfMatch(ctx, []byte("k"), []byte("v2"), ver)
	if err != nil || modified {
		t.Fatalf("forced conflict: modified=%v err=%v", modified, err)
	}

	// Reload observes a fresh version and the retry succeeds.
	_, ver2, _, _ := s.GetWithVersion(ctx, []byte("k"))
	if ver2 == ver {
		t.Fatalf("revision not advanced by simulated racer")
	}
	modified, err = s.SetIfMatch(ctx, []byte("k"), []byte("v2"), ver2)
	if err != nil || !modified {
		t.Fatalf("retry: modified=%v err=%v", modified, err)
	}
}
