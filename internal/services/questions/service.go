package questionsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/serhalp/queue-and-eh/internal/kv"
	"github.com/serhalp/queue-and-eh/internal/metrics"
	"github.com/serhalp/queue-and-eh/internal/retry"
	logpkg "github.com/serhalp/queue-and-eh/pkg/log"
)

// Service owns the per-event ordered question list.
//
// The store offers only whole-value conditional put, so every mutation is a
// read-modify-conditional-write loop on the full list. The stored order is
// insertion order; List sorts a copy by votes so tie-breaking stays stable.
type Service struct {
	store       kv.Store
	logger      logpkg.Logger
	maxAttempts int
	backoffBase time.Duration
}

// New creates a question repository with the default retry policy
// (5 attempts, linear 100ms backoff).
func New(store kv.Store, logger logpkg.Logger) *Service {
	return &Service{
		store:       store,
		logger:      logger.WithComponent("questions"),
		maxAttempts: 5,
		backoffBase: 100 * time.Millisecond,
	}
}

// SetRetryPolicy overrides the conditional-write retry bounds.
func (s *Service) SetRetryPolicy(maxAttempts int, backoffBase time.Duration) {
	s.maxAttempts = maxAttempts
	s.backoffBase = backoffBase
}

// List returns the event's questions sorted by votes descending, ties stable
// by insertion order. Store errors degrade to an empty list; the caller
// never fails.
func (s *Service) List(ctx context.Context, eventID string) []Question {
	qs, _, err := s.load(ctx, eventID)
	if err != nil {
		s.logger.Error("list questions failed", logpkg.Str("event_id", eventID), logpkg.Err(err))
		return []Question{}
	}
	sorted := make([]Question, len(qs))
	copy(sorted, qs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Votes > sorted[j].Votes })
	return sorted
}

// Find returns the question with the given id, or nil.
func (s *Service) Find(ctx context.Context, eventID, id string) *Question {
	qs, _, err := s.load(ctx, eventID)
	if err != nil {
		s.logger.Error("find question failed", logpkg.Str("event_id", eventID), logpkg.Err(err))
		return nil
	}
	for i := range qs {
		if qs[i].ID == id {
			q := qs[i]
			return &q
		}
	}
	return nil
}

// Add appends a question, retrying on conditional-write conflicts. It
// returns an error once retries are exhausted or on a store failure.
func (s *Service) Add(ctx context.Context, eventID string, q Question) error {
	return retry.WithOptimisticRetry(ctx, s.maxAttempts, retry.Linear(s.backoffBase), func(ctx context.Context) error {
		qs, ver, err := s.load(ctx, eventID)
		if err != nil {
			return err
		}
		return s.commit(ctx, eventID, append(qs, q), ver)
	})
}

// Update applies a partial field merge to the question with the given id
// under the same conditional-write protocol. Returns nil when the id is
// unknown (not retried).
func (s *Service) Update(ctx context.Context, eventID, id string, upd Update) (*Question, error) {
	var updated *Question
	err := retry.WithOptimisticRetry(ctx, s.maxAttempts, retry.Linear(s.backoffBase), func(ctx context.Context) error {
		qs, ver, err := s.load(ctx, eventID)
		if err != nil {
			return err
		}
		idx := indexOf(qs, id)
		if idx < 0 {
			updated = nil
			return nil
		}
		q := qs[idx]
		if upd.Text != nil {
			q.Text = *upd.Text
		}
		if upd.Votes != nil {
			q.Votes = *upd.Votes
		}
		if upd.VotedBy != nil {
			q.VotedBy = *upd.VotedBy
		}
		qs[idx] = q
		if err := s.commit(ctx, eventID, qs, ver); err != nil {
			return err
		}
		updated = &q
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Vote applies a vote or unvote by userID to the question inside the
// conditional-write loop, so votes and votedBy cannot diverge under
// concurrent voters. Voting while already voted, or unvoting without a
// vote, is a no-op returning the unchanged question. Returns nil when the
// question id is unknown.
func (s *Service) Vote(ctx context.Context, eventID, questionID, userID, action string) (*Question, error) {
	if action != ActionVote && action != ActionUnvote {
		return nil, fmt.Errorf("questions: invalid action %q", action)
	}
	var result *Question
	err := retry.WithOptimisticRetry(ctx, s.maxAttempts, retry.Linear(s.backoffBase), func(ctx context.Context) error {
		qs, ver, err := s.load(ctx, eventID)
		if err != nil {
			return err
		}
		idx := indexOf(qs, questionID)
		if idx < 0 {
			result = nil
			return nil
		}
		q := qs[idx]
		hasVoted := q.HasVoted(userID)
		switch {
		case action == ActionVote && !hasVoted:
			q.VotedBy = append(append([]string{}, q.VotedBy...), userID)
		case action == ActionUnvote && hasVoted:
			kept := make([]string, 0, len(q.VotedBy))
			for _, id := range q.VotedBy {
				if id != userID {
					kept = append(kept, id)
				}
			}
			q.VotedBy = kept
		default:
			// Already in the requested state; no write.
			result = &q
			return nil
		}
		q.Votes = len(q.VotedBy)
		qs[idx] = q
		if err := s.commit(ctx, eventID, qs, ver); err != nil {
			return err
		}
		result = &q
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// load reads the full list with its version tag. An absent key yields an
// empty list and kv.NoVersion.
func (s *Service) load(ctx context.Context, eventID string) ([]Question, kv.Version, error) {
	raw, ver, ok, err := s.store.GetWithVersion(ctx, ListKey(eventID))
	if err != nil {
		return nil, kv.NoVersion, err
	}
	if !ok {
		return []Question{}, kv.NoVersion, nil
	}
	var qs []Question
	if err := json.Unmarshal(raw, &qs); err != nil {
		return nil, kv.NoVersion, fmt.Errorf("questions: decode list: %w", err)
	}
	return qs, ver, nil
}

// commit conditionally writes the list; a lost race reports retry.ErrConflict.
func (s *Service) commit(ctx context.Context, eventID string, qs []Question, ver kv.Version) error {
	raw, err := json.Marshal(qs)
	if err != nil {
		return err
	}
	modified, err := s.store.SetIfMatch(ctx, ListKey(eventID), raw, ver)
	if err != nil {
		return err
	}
	if !modified {
		metrics.IncCASConflict("questions")
		s.logger.Debug("conditional write rejected, retrying", logpkg.Str("event_id", eventID))
		return retry.ErrConflict
	}
	return nil
}

func indexOf(qs []Question, id string) int {
	for i := range qs {
		if qs[i].ID == id {
			return i
		}
	}
	return -1
}
