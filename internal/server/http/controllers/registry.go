package controllers

import (
	"github.com/go-chi/chi/v5"

	"github.com/serhalp/queue-and-eh/internal/runtime"
	eventsvc "github.com/serhalp/queue-and-eh/internal/services/events"
	presencesvc "github.com/serhalp/queue-and-eh/internal/services/presence"
	questionsvc "github.com/serhalp/queue-and-eh/internal/services/questions"
	logpkg "github.com/serhalp/queue-and-eh/pkg/log"
)

// ControllerRegistry manages all HTTP controllers.
//
// It provides a centralized way to register all controller routes and keeps
// the per-area controllers wired to their services.
type ControllerRegistry struct {
	general   *GeneralController
	events    *EventsController
	questions *QuestionsController
	stream    *StreamController
}

// NewControllerRegistry creates a new controller registry.
func NewControllerRegistry(rt *runtime.Runtime, events *eventsvc.Service, questions *questionsvc.Service, presence *presencesvc.Service, logger logpkg.Logger) *ControllerRegistry {
	return &ControllerRegistry{
		general:   NewGeneralController(rt),
		events:    NewEventsController(events),
		questions: NewQuestionsController(rt, events, questions),
		stream:    NewStreamController(rt, events, questions, presence, logger),
	}
}

// RegisterAllRoutes registers all controller routes with the given router.
//
// This sets up the health endpoint, event creation and lookup, the question
// list and its mutations, and the live SSE stream.
func (r *ControllerRegistry) RegisterAllRoutes(router chi.Router) {
	r.general.RegisterRoutes(router)
	r.events.RegisterRoutes(router)
	r.questions.RegisterRoutes(router)
	r.stream.RegisterRoutes(router)
}
