package questionsvc

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Question is a single audience question within an event.
//
// Invariant: Votes always equals len(VotedBy). VotedBy is a set; a user holds
// at most one vote per question.
type Question struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Votes     int       `json:"votes"`
	CreatedAt time.Time `json:"createdAt"`
	VotedBy   []string  `json:"votedBy"`
	AuthorID  string    `json:"authorId"`
}

// NewQuestion builds a fresh question with zero votes.
func NewQuestion(text, authorID string) Question {
	return Question{
		ID:        uuid.NewString(),
		Text:      strings.TrimSpace(text),
		Votes:     0,
		CreatedAt: time.Now().UTC(),
		VotedBy:   []string{},
		AuthorID:  authorID,
	}
}

// HasVoted reports whether userID currently holds a vote on q.
func (q Question) HasVoted(userID string) bool {
	for _, id := range q.VotedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// Update is a partial field merge applied to an existing question. Nil
// fields are left unchanged.
type Update struct {
	Text    *string
	Votes   *int
	VotedBy *[]string
}

// Vote actions accepted by the vote endpoint.
const (
	ActionVote   = "vote"
	ActionUnvote = "unvote"
)
