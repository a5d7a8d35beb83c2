package questionsvc

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/serhalp/queue-and-eh/internal/kv"
	"github.com/serhalp/queue-and-eh/internal/retry"
	logpkg "github.com/serhalp/queue-and-eh/pkg/log"
)

func newTestService(t *testing.T) (*Service, *kv.MemoryStore) {
	t.Helper()
	store := kv.NewMemoryStore()
	logger := logpkg.NewLogger(logpkg.WithLevel(logpkg.ErrorLevel))
	svc := New(store, logger)
	svc.SetRetryPolicy(5, time.Millisecond)
	return svc, store
}

func TestAddAndList(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	q := NewQuestion("Hello?", "u1")
	if q.Votes != 0 || len(q.VotedBy) != 0 {
		t.Fatalf("fresh question: votes=%d votedBy=%v", q.Votes, q.VotedBy)
	}
	if err := svc.Add(ctx, "e1", q); err != nil {
		t.Fatalf("add: %v", err)
	}

	got := svc.List(ctx, "e1")
	if len(got) != 1 {
		t.Fatalf("list len = %d", len(got))
	}
	if got[0].ID != q.ID || got[0].Text != "Hello?" || got[0].AuthorID != "u1" {
		t.Fatalf("round trip: %+v", got[0])
	}
}

func TestListAbsentEventIsEmpty(t *testing.T) {
	svc, _ := newTestService(t)
	got := svc.List(context.Background(), "nope")
	if got == nil || len(got) != 0 {
		t.Fatalf("want empty list, got %v", got)
	}
}

func TestListDegradesOnStoreError(t *testing.T) {
	svc, store := newTestService(t)
	store.FailReads(errors.New("store down"))
	got := svc.List(context.Background(), "e1")
	if len(got) != 0 {
		t.Fatalf("want empty list on store error, got %v", got)
	}
}

func TestListSortedByVotesStable(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	qa, qb, qc := NewQuestion("a", "u1"), NewQuestion("b", "u1"), NewQuestion("c", "u1")
	for _, q := range []Question{qa, qb, qc} {
		if err := svc.Add(ctx, "e1", q); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	// b gets two votes, a and c stay tied at one each.
	for _, vote := range []struct{ qid, uid string }{
		{qb.ID, "v1"}, {qb.ID, "v2"}, {qa.ID, "v1"}, {qc.ID, "v1"},
	} {
		if _, err := svc.Vote(ctx, "e1", vote.qid, vote.uid, ActionVote); err != nil {
			t.Fatalf("vote: %v", err)
		}
	}

	got := svc.List(ctx, "e1")
	if len(got) != 3 {
		t.Fatalf("list len = %d", len(got))
	}
	if got[0].ID != qb.ID {
		t.Fatalf("want b first, got %s", got[0].Text)
	}
	// a and c are tied; insertion order breaks the tie.
	if got[1].ID != qa.ID || got[2].ID != qc.ID {
		t.Fatalf("tie order: %s then %s", got[1].Text, got[2].Text)
	}
}

func TestAddRetriesOnConflict(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	if err := svc.Add(ctx, "e1", NewQuestion("first", "u1")); err != nil {
		t.Fatalf("add: %v", err)
	}

	// The next conditional write loses one round to a simulated racer.
	store.RejectNextConditionalWrites(1)
	if err := svc.Add(ctx, "e1", NewQuestion("second", "u2")); err != nil {
		t.Fatalf("add with conflict: %v", err)
	}

	got := svc.List(ctx, "e1")
	if len(got) != 2 {
		t.Fatalf("both adds must survive, got %d", len(got))
	}
}

func TestAddExhaustsRetries(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	store.RejectNextConditionalWrites(10)
	err := svc.Add(ctx, "e1", NewQuestion("doomed", "u1"))
	if !errors.Is(err, retry.ErrExhausted) {
		t.Fatalf("want ErrExhausted, got %v", err)
	}
}

func TestConcurrentAddsNoLostWrites(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = svc.Add(ctx, "e1", NewQuestion("q", "u"))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	got := svc.List(ctx, "e1")
	if len(got) != succeeded {
		t.Fatalf("final list length %d != %d successful adds", len(got), succeeded)
	}
}

func TestVoteIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	q := NewQuestion("q", "u1")
	if err := svc.Add(ctx, "e1", q); err != nil {
		t.Fatalf("add: %v", err)
	}

	first, err := svc.Vote(ctx, "e1", q.ID, "u2", ActionVote)
	if err != nil {
		t.Fatalf("vote: %v", err)
	}
	if first.Votes != 1 || !first.HasVoted("u2") {
		t.Fatalf("after vote: %+v", first)
	}

	second, err := svc.Vote(ctx, "e1", q.ID, "u2", ActionVote)
	if err != nil {
		t.Fatalf("second vote: %v", err)
	}
	if second.Votes != 1 {
		t.Fatalf("second vote must be a no-op, votes=%d", second.Votes)
	}
}

func TestUnvoteWithoutVoteIsNoop(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	q := NewQuestion("q", "u1")
	if err := svc.Add(ctx, "e1", q); err != nil {
		t.Fatalf("add: %v", err)
	}
	got, err := svc.Vote(ctx, "e1", q.ID, "u9", ActionUnvote)
	if err != nil {
		t.Fatalf("unvote: %v", err)
	}
	if got.Votes != 0 || len(got.VotedBy) != 0 {
		t.Fatalf("unvote without vote changed state: %+v", got)
	}
}

func TestVotesMatchVotedBy(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	q := NewQuestion("q", "u1")
	if err := svc.Add(ctx, "e1", q); err != nil {
		t.Fatalf("add: %v", err)
	}

	ops := []struct{ uid, action string }{
		{"a", ActionVote}, {"b", ActionVote}, {"a", ActionVote},
		{"a", ActionUnvote}, {"c", ActionVote}, {"c", ActionUnvote},
		{"c", ActionUnvote}, {"b", ActionUnvote}, {"d", ActionVote},
	}
	for _, op := range ops {
		got, err := svc.Vote(ctx, "e1", q.ID, op.uid, op.action)
		if err != nil {
			t.Fatalf("%s %s: %v", op.action, op.uid, err)
		}
		if got.Votes != len(got.VotedBy) {
			t.Fatalf("invariant broken after %s %s: votes=%d votedBy=%v", op.action, op.uid, got.Votes, got.VotedBy)
		}
	}
}

func TestVoteUnknownQuestion(t *testing.T) {
	svc, _ := newTestService(t)
	got, err := svc.Vote(context.Background(), "e1", "missing", "u1", ActionVote)
	if err != nil {
		t.Fatalf("vote: %v", err)
	}
	if got != nil {
		t.Fatalf("want nil for unknown question, got %+v", got)
	}
}

func TestVoteInvalidAction(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Vote(context.Background(), "e1", "q", "u", "boost"); err == nil {
		t.Fatalf("expected error for invalid action")
	}
}

func TestUpdateMergesFields(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	q := NewQuestion("before", "u1")
	if err := svc.Add(ctx, "e1", q); err != nil {
		t.Fatalf("add: %v", err)
	}

	text := "after"
	got, err := svc.Update(ctx, "e1", q.ID, Update{Text: &text})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got == nil || got.Text != "after" || got.AuthorID != "u1" {
		t.Fatalf("merge result: %+v", got)
	}
}

func TestUpdateUnknownIDReturnsNil(t *testing.T) {
	svc, _ := newTestService(t)
	text := "x"
	got, err := svc.Update(context.Background(), "e1", "missing", Update{Text: &text})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got != nil {
		t.Fatalf("want nil, got %+v", got)
	}
}

func TestFind(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	q := NewQuestion("findable", "u1")
	if err := svc.Add(ctx, "e1", q); err != nil {
		t.Fatalf("add: %v", err)
	}
	if got := svc.Find(ctx, "e1", q.ID); got == nil || got.Text != "findable" {
		t.Fatalf("find: %+v", got)
	}
	if got := svc.Find(ctx, "e1", "missing"); got != nil {
		t.Fatalf("find missing: %+v", got)
	}
}
