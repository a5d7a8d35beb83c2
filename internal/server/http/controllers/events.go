package controllers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	eventsvc "github.com/serhalp/queue-and-eh/internal/services/events"
)

// EventsController handles event creation and metadata lookup.
type EventsController struct {
	events *eventsvc.Service
}

func NewEventsController(events *eventsvc.Service) *EventsController {
	return &EventsController{events: events}
}

// RegisterRoutes registers event routes with the given router.
func (c *EventsController) RegisterRoutes(router chi.Router) {
	router.Post("/events", c.handleCreate)
	router.Get("/events/{eventID}", c.handleGet)
}

type createEventReq struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (c *EventsController) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createEventReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "Title is required")
		return
	}
	ev, err := c.events.Create(r.Context(), req.Title, req.Description)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create event")
		return
	}
	writeJSONStatus(w, http.StatusCreated, map[string]any{"success": true, "event": ev})
}

func (c *EventsController) handleGet(w http.ResponseWriter, r *http.Request) {
	ev, err := c.events.Get(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load event")
		return
	}
	if ev == nil {
		writeError(w, http.StatusNotFound, "Event not found")
		return
	}
	writeJSON(w, map[string]any{"success": true, "event": ev})
}
