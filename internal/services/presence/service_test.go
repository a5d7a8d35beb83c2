package presencesvc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/serhalp/queue-and-eh/internal/kv"
	logpkg "github.com/serhalp/queue-and-eh/pkg/log"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestService(t *testing.T) (*Service, *kv.MemoryStore, *fakeClock) {
	t.Helper()
	store := kv.NewMemoryStore()
	logger := logpkg.NewLogger(logpkg.WithLevel(logpkg.ErrorLevel))
	svc := New(store, logger)
	svc.SetRetryPolicy(5, time.Millisecond)
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	svc.SetClock(clock.now)
	return svc, store, clock
}

func TestAddUserAndSummary(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	svc.AddUser(ctx, "e1", "u1", "CA", "Canada")
	svc.AddUser(ctx, "e1", "u2", "CA", "Canada")
	svc.AddUser(ctx, "e1", "u3", "FR", "France")

	sum := svc.Summary(ctx, "e1")
	if sum.Total != 3 {
		t.Fatalf("total = %d", sum.Total)
	}
	if cc := sum.Countries["CA"]; cc.Count != 2 || cc.Name != "Canada" {
		t.Fatalf("CA = %+v", cc)
	}
	if cc := sum.Countries["FR"]; cc.Count != 1 || cc.Name != "France" {
		t.Fatalf("FR = %+v", cc)
	}
}

func TestAddUserDefaultsUnknownCountry(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	svc.AddUser(ctx, "e1", "u1", "", "")
	sum := svc.Summary(ctx, "e1")
	if cc := sum.Countries["unknown"]; cc.Count != 1 || cc.Name != "Unknown" {
		t.Fatalf("unknown bucket = %+v", cc)
	}
}

func TestAddUserIsUpsert(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	svc.AddUser(ctx, "e1", "u1", "CA", "Canada")
	svc.AddUser(ctx, "e1", "u1", "FR", "France")

	sum := svc.Summary(ctx, "e1")
	if sum.Total != 1 {
		t.Fatalf("total = %d", sum.Total)
	}
	if _, ok := sum.Countries["CA"]; ok {
		t.Fatalf("old country survived: %+v", sum.Countries)
	}
}

func TestStaleEviction(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	svc.AddUser(ctx, "e1", "stale", "CA", "Canada")
	clock.advance(20 * time.Second)
	svc.AddUser(ctx, "e1", "fresh", "FR", "France")

	// stale is now 31s old, fresh 11s old.
	clock.advance(11 * time.Second)
	sum := svc.Summary(ctx, "e1")
	if sum.Total != 1 {
		t.Fatalf("total = %d, countries = %+v", sum.Total, sum.Countries)
	}
	if _, ok := sum.Countries["CA"]; ok {
		t.Fatalf("stale viewer survived")
	}
}

func TestHeartbeatKeepsViewerAlive(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	svc.AddUser(ctx, "e1", "u1", "CA", "Canada")
	clock.advance(25 * time.Second)
	svc.Heartbeat(ctx, "e1", "u1")
	clock.advance(25 * time.Second)

	sum := svc.Summary(ctx, "e1")
	if sum.Total != 1 {
		t.Fatalf("heartbeat did not keep viewer alive: %+v", sum)
	}
}

func TestHeartbeatUnknownUserIsIgnored(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	svc.Heartbeat(ctx, "e1", "ghost")
	sum := svc.Summary(ctx, "e1")
	if sum.Total != 0 {
		t.Fatalf("heartbeat re-added a viewer: %+v", sum)
	}
}

func TestRemoveLastUserDeletesKey(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	svc.AddUser(ctx, "e1", "u1", "CA", "Canada")
	if store.Len() != 1 {
		t.Fatalf("store len = %d", store.Len())
	}
	svc.RemoveUser(ctx, "e1", "u1")
	if store.Len() != 0 {
		t.Fatalf("empty presence map must delete the key, store len = %d", store.Len())
	}
	sum := svc.Summary(ctx, "e1")
	if sum.Total != 0 {
		t.Fatalf("summary after remove: %+v", sum)
	}
}

func TestRemoveKeepsOtherViewers(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	svc.AddUser(ctx, "e1", "u1", "CA", "Canada")
	svc.AddUser(ctx, "e1", "u2", "FR", "France")
	svc.RemoveUser(ctx, "e1", "u1")

	sum := svc.Summary(ctx, "e1")
	if sum.Total != 1 {
		t.Fatalf("total = %d", sum.Total)
	}
	if _, ok := sum.Countries["FR"]; !ok {
		t.Fatalf("surviving viewer lost: %+v", sum.Countries)
	}
}

func TestMutationsSurviveConflicts(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	svc.AddUser(ctx, "e1", "u1", "CA", "Canada")
	store.RejectNextConditionalWrites(1)
	svc.AddUser(ctx, "e1", "u2", "FR", "France")

	sum := svc.Summary(ctx, "e1")
	if sum.Total != 2 {
		t.Fatalf("total = %d", sum.Total)
	}
}

func presenceVersion(t *testing.T, store *kv.MemoryStore, eventID string) kv.Version {
	t.Helper()
	_, ver, _, err := store.GetWithVersion(context.Background(), []byte("event/"+eventID+"/presence"))
	if err != nil {
		t.Fatalf("get version: %v", err)
	}
	return ver
}

func TestSummaryWithNothingStaleDoesNotWrite(t *testing.T) {
	svc, store, clock := newTestService(t)
	ctx := context.Background()

	svc.AddUser(ctx, "e1", "u1", "CA", "Canada")
	before := presenceVersion(t, store, "e1")

	clock.advance(5 * time.Second)
	sum := svc.Summary(ctx, "e1")
	if sum.Total != 1 {
		t.Fatalf("total = %d", sum.Total)
	}
	if after := presenceVersion(t, store, "e1"); after != before {
		t.Fatalf("summary rewrote unchanged map: %q -> %q", before, after)
	}
}

func TestSummaryWritesOnlyWhenEvicting(t *testing.T) {
	svc, store, clock := newTestService(t)
	ctx := context.Background()

	svc.AddUser(ctx, "e1", "stale", "CA", "Canada")
	svc.AddUser(ctx, "e1", "fresh", "FR", "France")
	clock.advance(31 * time.Second)
	svc.Heartbeat(ctx, "e1", "fresh")
	before := presenceVersion(t, store, "e1")

	if sum := svc.Summary(ctx, "e1"); sum.Total != 1 {
		t.Fatalf("total = %d", sum.Total)
	}
	mid := presenceVersion(t, store, "e1")
	if mid == before {
		t.Fatalf("eviction did not write")
	}
	if sum := svc.Summary(ctx, "e1"); sum.Total != 1 {
		t.Fatalf("total = %d", sum.Total)
	}
	if after := presenceVersion(t, store, "e1"); after != mid {
		t.Fatalf("second summary rewrote with nothing to evict: %q -> %q", mid, after)
	}
}

func TestNoopMutationsDoNotWrite(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	svc.Heartbeat(ctx, "e1", "ghost")
	svc.RemoveUser(ctx, "e1", "ghost")
	if store.Len() != 0 {
		t.Fatalf("no-op mutations created keys, store len = %d", store.Len())
	}

	svc.AddUser(ctx, "e1", "u1", "CA", "Canada")
	before := presenceVersion(t, store, "e1")
	svc.Heartbeat(ctx, "e1", "ghost")
	svc.RemoveUser(ctx, "e1", "ghost")
	if after := presenceVersion(t, store, "e1"); after != before {
		t.Fatalf("no-op mutations wrote: %q -> %q", before, after)
	}
}

func TestStoreFailuresAreSwallowed(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	store.FailWrites(errors.New("disk full"))
	svc.AddUser(ctx, "e1", "u1", "CA", "Canada")

	store.FailReads(errors.New("store down"))
	sum := svc.Summary(ctx, "e1")
	if sum.Total != 0 || sum.Countries == nil {
		t.Fatalf("summary must degrade to empty: %+v", sum)
	}
}
