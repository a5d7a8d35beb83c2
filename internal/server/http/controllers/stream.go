package controllers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/serhalp/queue-and-eh/internal/metrics"
	"github.com/serhalp/queue-and-eh/internal/runtime"
	eventsvc "github.com/serhalp/queue-and-eh/internal/services/events"
	presencesvc "github.com/serhalp/queue-and-eh/internal/services/presence"
	questionsvc "github.com/serhalp/queue-and-eh/internal/services/questions"
	logpkg "github.com/serhalp/queue-and-eh/pkg/log"
)

// StreamController serves the live SSE feed of an event: the question list
// and the presence summary, re-sent whenever either changes.
type StreamController struct {
	rt        *runtime.Runtime
	events    *eventsvc.Service
	questions *questionsvc.Service
	presence  *presencesvc.Service
	logger    logpkg.Logger
}

func NewStreamController(rt *runtime.Runtime, events *eventsvc.Service, questions *questionsvc.Service, presence *presencesvc.Service, logger logpkg.Logger) *StreamController {
	return &StreamController{
		rt:        rt,
		events:    events,
		questions: questions,
		presence:  presence,
		logger:    logger.WithComponent("stream"),
	}
}

// RegisterRoutes registers the stream route with the given router.
func (c *StreamController) RegisterRoutes(router chi.Router) {
	router.Get("/events/{eventID}/stream", c.handleStream)
}

// handleStream is the SSE subscription loop for one viewer.
//
// On connect the viewer joins the presence set and receives an immediate
// snapshot of both feeds. After that a ticker drives the loop: each tick
// refreshes the viewer's heartbeat, re-reads both feeds, and emits a named
// event only for the feed whose serialized form changed since it was last
// sent. Ticks the connection goroutine misses while writing are simply
// dropped by the ticker. Departure cleanup runs exactly once whether the
// client disconnects or a write fails.
func (c *StreamController) handleStream(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	q := r.URL.Query()
	userID := q.Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	ok, err := c.events.Exists(r.Context(), eventID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load event")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Event not found")
		return
	}

	filter, err := newCELFilter(q.Get("filter"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter expression")
		return
	}

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		writeError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	c.presence.AddUser(ctx, eventID, userID, q.Get("country"), q.Get("countryName"))
	metrics.StreamOpened()
	c.logger.Debug("viewer connected", logpkg.Str("event_id", eventID), logpkg.Str("user_id", userID))

	var cleanup sync.Once
	leave := func() {
		cleanup.Do(func() {
			// The request context is already canceled on disconnect; use a
			// short detached context so departure still reaches the store.
			dctx, cancel := detachedContext(2 * time.Second)
			defer cancel()
			c.presence.RemoveUser(dctx, eventID, userID)
			metrics.StreamClosed()
			c.logger.Debug("viewer disconnected", logpkg.Str("event_id", eventID), logpkg.Str("user_id", userID))
		})
	}
	defer leave()

	var lastQuestions, lastPresence []byte

	send := func() error {
		qs := filter.apply(c.questions.List(ctx, eventID))
		qPayload, err := json.Marshal(map[string]any{
			"success":   true,
			"questions": qs,
			"timestamp": time.Now().UnixMilli(),
		})
		if err != nil {
			return err
		}
		qBody, _ := json.Marshal(qs)
		if !bytes.Equal(qBody, lastQuestions) {
			if err := writeSSE(w, "questions", qPayload); err != nil {
				return err
			}
			lastQuestions = qBody
		}

		sum := c.presence.Summary(ctx, eventID)
		pPayload, err := json.Marshal(map[string]any{
			"success":   true,
			"presence":  sum,
			"timestamp": time.Now().UnixMilli(),
		})
		if err != nil {
			return err
		}
		pBody, _ := json.Marshal(sum)
		if !bytes.Equal(pBody, lastPresence) {
			if err := writeSSE(w, "presence", pPayload); err != nil {
				return err
			}
			lastPresence = pBody
		}
		flusher.Flush()
		return nil
	}

	if err := send(); err != nil {
		return
	}

	ticker := time.NewTicker(tickInterval(c.rt.Config().Stream.TickMs))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.presence.Heartbeat(ctx, eventID, userID)
			if err := send(); err != nil {
				return
			}
			// Comment line keeps idle connections from being reaped by
			// intermediaries.
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

const defaultTickMs = 2000

// tickInterval converts the configured tick to a ticker-safe duration,
// falling back to the default for zero or negative values.
func tickInterval(ms int) time.Duration {
	if ms <= 0 {
		ms = defaultTickMs
	}
	return time.Duration(ms) * time.Millisecond
}

// writeSSE emits one named SSE event.
func writeSSE(w http.ResponseWriter, name string, payload []byte) error {
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payload); err != nil {
		return err
	}
	return nil
}
