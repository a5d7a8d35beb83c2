package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/serhalp/queue-and-eh/internal/runtime"
	eventsvc "github.com/serhalp/queue-and-eh/internal/services/events"
	questionsvc "github.com/serhalp/queue-and-eh/internal/services/questions"
)

// QuestionsController handles the question list and its mutations.
type QuestionsController struct {
	rt        *runtime.Runtime
	events    *eventsvc.Service
	questions *questionsvc.Service
}

func NewQuestionsController(rt *runtime.Runtime, events *eventsvc.Service, questions *questionsvc.Service) *QuestionsController {
	return &QuestionsController{rt: rt, events: events, questions: questions}
}

// RegisterRoutes registers question routes with the given router.
func (c *QuestionsController) RegisterRoutes(router chi.Router) {
	router.Get("/events/{eventID}/questions", c.handleList)
	router.Post("/events/{eventID}/questions", c.handleAdd)
	router.Post("/events/{eventID}/questions/vote", c.handleVote)
}

func (c *QuestionsController) handleList(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	qs := c.questions.List(r.Context(), eventID)
	writeJSON(w, map[string]any{"success": true, "questions": qs})
}

type addQuestionReq struct {
	Text     string `json:"text"`
	AuthorID string `json:"authorId"`
}

func (c *QuestionsController) handleAdd(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	var req addQuestionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	maxLen := c.rt.Config().Stream.MaxQuestionLen
	text := strings.TrimSpace(req.Text)
	switch {
	case text == "":
		writeError(w, http.StatusBadRequest, "Question text is required")
		return
	case utf8.RuneCountInString(text) > maxLen:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Question text must be %d characters or less", maxLen))
		return
	case req.AuthorID == "":
		writeError(w, http.StatusBadRequest, "Author id is required")
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
	q := questionsvc.NewQuestion(text, req.AuthorID)
	if err := c.questions.Add(r.Context(), eventID, q); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to add question")
		return
	}
	writeJSONStatus(w, http.StatusCreated, map[string]any{"success": true, "question": q})
}

type voteReq struct {
	QuestionID string `json:"questionId"`
	UserID     string `json:"userId"`
	Action     string `json:"action"`
}

func (c *QuestionsController) handleVote(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	var req voteReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.QuestionID == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "questionId and userId are required")
		return
	}
	if req.Action != questionsvc.ActionVote && req.Action != questionsvc.ActionUnvote {
		writeError(w, http.StatusBadRequest, "Action must be vote or unvote")
		return
	}
	q, err := c.questions.Vote(r.Context(), eventID, req.QuestionID, req.UserID, req.Action)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record vote")
		return
	}
	if q == nil {
		writeError(w, http.StatusNotFound, "Question not found")
		return
	}
	writeJSON(w, map[string]any{"success": true, "question": q})
}
