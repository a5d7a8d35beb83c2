package presencesvc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/serhalp/queue-and-eh/internal/kv"
	"github.com/serhalp/queue-and-eh/internal/metrics"
	"github.com/serhalp/queue-and-eh/internal/retry"
	logpkg "github.com/serhalp/queue-and-eh/pkg/log"
)

// Keyspace (event-scoped):
// - event/{eventId}/presence

// DefaultStaleThreshold is how long a viewer may go without a heartbeat
// before being evicted.
const DefaultStaleThreshold = 30 * time.Second

// Service tracks per-event viewer presence. Mutations share the question
// repository's conditional-write protocol; unlike questions, every failure
// here is swallowed after logging, since presence is advisory.
type Service struct {
	store          kv.Store
	logger         logpkg.Logger
	staleThreshold time.Duration
	maxAttempts    int
	backoffBase    time.Duration
	now            func() time.Time
}

func New(store kv.Store, logger logpkg.Logger) *Service {
	return &Service{
		store:          store,
		logger:         logger.WithComponent("presence"),
		staleThreshold: DefaultStaleThreshold,
		maxAttempts:    5,
		backoffBase:    100 * time.Millisecond,
		now:            time.Now,
	}
}

// SetStaleThreshold overrides the eviction threshold.
func (s *Service) SetStaleThreshold(d time.Duration) { s.staleThreshold = d }

// SetRetryPolicy overrides the conditional-write retry bounds.
func (s *Service) SetRetryPolicy(maxAttempts int, backoffBase time.Duration) {
	s.maxAttempts = maxAttempts
	s.backoffBase = backoffBase
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// AddUser records a viewer joining an event, stamping their last-seen time.
// Empty country fields default to unknown.
func (s *Service) AddUser(ctx context.Context, eventID, userID, country, countryName string) {
	if country == "" {
		country = "unknown"
	}
	if countryName == "" {
		countryName = "Unknown"
	}
	s.mutate(ctx, eventID, "add user", func(entries map[string]Entry) bool {
		entries[userID] = Entry{
			UserID:      userID,
			Country:     country,
			CountryName: countryName,
			LastSeenMs:  s.now().UnixMilli(),
		}
		return true
	})
}

// Heartbeat refreshes a viewer's last-seen time. A heartbeat for a viewer
// not currently present is ignored rather than re-adding them.
func (s *Service) Heartbeat(ctx context.Context, eventID, userID string) {
	s.mutate(ctx, eventID, "heartbeat", func(entries map[string]Entry) bool {
		e, ok := entries[userID]
		if !ok {
			return false
		}
		e.LastSeenMs = s.now().UnixMilli()
		entries[userID] = e
		return true
	})
}

// RemoveUser drops a viewer from an event.
func (s *Service) RemoveUser(ctx context.Context, eventID, userID string) {
	s.mutate(ctx, eventID, "remove user", func(entries map[string]Entry) bool {
		if _, ok := entries[userID]; !ok {
			return false
		}
		delete(entries, userID)
		return true
	})
}

// CleanupStale evicts viewers whose last heartbeat is older than the stale
// threshold.
func (s *Service) CleanupStale(ctx context.Context, eventID string) {
	cutoff := s.now().UnixMilli() - s.staleThreshold.Milliseconds()
	s.mutate(ctx, eventID, "cleanup stale", func(entries map[string]Entry) bool {
		evicted := false
		for id, e := range entries {
			if e.LastSeenMs < cutoff {
				delete(entries, id)
				evicted = true
			}
		}
		return evicted
	})
}

// Summary evicts stale viewers, then aggregates the survivors by country.
// Failures degrade to an empty summary.
func (s *Service) Summary(ctx context.Context, eventID string) Summary {
	s.CleanupStale(ctx, eventID)

	out := Summary{Countries: map[string]CountryCount{}}
	entries, _, err := s.load(ctx, eventID)
	if err != nil {
		s.logger.Error("presence summary failed", logpkg.Str("event_id", eventID), logpkg.Err(err))
		return out
	}
	for _, e := range entries {
		cc := out.Countries[e.Country]
		cc.Count++
		cc.Name = e.CountryName
		out.Countries[e.Country] = cc
		out.Total++
	}
	return out
}

// mutate runs fn on the current entry map inside a conditional-write retry
// loop. fn reports whether it changed the map; an unchanged map skips the
// write entirely, so read-heavy paths (Summary with nothing stale, stray
// heartbeats) don't contend with real writers. When the map empties, the
// key is deleted instead of storing an empty object. All failures are
// logged and swallowed.
func (s *Service) mutate(ctx context.Context, eventID, what string, fn func(map[string]Entry) bool) {
	err := retry.WithOptimisticRetry(ctx, s.maxAttempts, retry.Linear(s.backoffBase), func(ctx context.Context) error {
		entries, ver, err := s.load(ctx, eventID)
		if err != nil {
			return err
		}
		if !fn(entries) {
			return nil
		}
		if len(entries) == 0 {
			if ver == kv.NoVersion {
				return nil
			}
			return s.store.Delete(ctx, presenceKey(eventID))
		}
		raw, err := json.Marshal(entries)
		if err != nil {
			return err
		}
		modified, err := s.store.SetIfMatch(ctx, presenceKey(eventID), raw, ver)
		if err != nil {
			return err
		}
		if !modified {
			metrics.IncCASConflict("presence")
			return retry.ErrConflict
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("presence "+what+" failed", logpkg.Str("event_id", eventID), logpkg.Err(err))
	}
}

func (s *Service) load(ctx context.Context, eventID string) (map[string]Entry, kv.Version, error) {
	raw, ver, ok, err := s.store.GetWithVersion(ctx, presenceKey(eventID))
	if err != nil {
		return nil, kv.NoVersion, err
	}
	if !ok {
		return map[string]Entry{}, kv.NoVersion, nil
	}
	var entries map[string]Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, kv.NoVersion, fmt.Errorf("presence: decode entries: %w", err)
	}
	if entries == nil {
		entries = map[string]Entry{}
	}
	return entries, ver, nil
}

func presenceKey(eventID string) []byte {
	return []byte("event/" + eventID + "/presence")
}
