package eventsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/serhalp/queue-and-eh/internal/kv"
	questionsvc "github.com/serhalp/queue-and-eh/internal/services/questions"
	logpkg "github.com/serhalp/queue-and-eh/pkg/log"
)

// Keyspace (event-scoped):
// - event/{eventId}/meta

// Event is the metadata record of a single Q&A board.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Service owns event metadata records.
type Service struct {
	store  kv.Store
	logger logpkg.Logger
}

func New(store kv.Store, logger logpkg.Logger) *Service {
	return &Service{store: store, logger: logger.WithComponent("events")}
}

// Create registers a new event and seeds its empty question list. The two
// writes are independent; a reader that sees the metadata before the seed
// still observes an empty board, since an absent list reads as empty.
func (s *Service) Create(ctx context.Context, title, description string) (*Event, error) {
	ev := Event{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
		CreatedAt:   time.Now().UTC(),
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	if err := s.store.Set(ctx, metaKey(ev.ID), raw); err != nil {
		return nil, fmt.Errorf("events: create %s: %w", ev.ID, err)
	}
	empty, _ := json.Marshal([]questionsvc.Question{})
	if err := s.store.Set(ctx, questionsvc.ListKey(ev.ID), empty); err != nil {
		return nil, fmt.Errorf("events: seed questions for %s: %w", ev.ID, err)
	}
	s.logger.Info("event created", logpkg.Str("event_id", ev.ID), logpkg.Str("title", ev.Title))
	return &ev, nil
}

// Get returns the event metadata, or nil when the id is unknown.
func (s *Service) Get(ctx context.Context, id string) (*Event, error) {
	raw, ok, err := s.store.Get(ctx, metaKey(id))
	if err != nil {
		return nil, fmt.Errorf("events: get %s: %w", id, err)
	}
	if !ok {
		return nil, nil
	}
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("events: decode %s: %w", id, err)
	}
	return &ev, nil
}

// Exists reports whether an event with the given id has been created.
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	_, ok, err := s.store.Get(ctx, metaKey(id))
	if err != nil {
		return false, fmt.Errorf("events: exists %s: %w", id, err)
	}
	return ok, nil
}

func metaKey(eventID string) []byte {
	return []byte("event/" + eventID + "/meta")
}
