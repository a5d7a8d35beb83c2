package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Event mirrors the service's event metadata record.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Question mirrors the service's question record.
type Question struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Votes     int       `json:"votes"`
	CreatedAt time.Time `json:"createdAt"`
	VotedBy   []string  `json:"votedBy"`
	AuthorID  string    `json:"authorId"`
}

// CountryCount aggregates viewers per country code.
type CountryCount struct {
	Count int    `json:"count"`
	Name  string `json:"name"`
}

// PresenceSummary is the aggregate presence view pushed on the stream.
type PresenceSummary struct {
	Total     int                     `json:"total"`
	Countries map[string]CountryCount `json:"countries"`
}

// Vote actions.
const (
	ActionVote   = "vote"
	ActionUnvote = "unvote"
)

// Client talks to one Q&A board service instance.
type Client struct {
	baseURL string
	hc      *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// New creates a client for the service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured service address.
func (c *Client) BaseURL() string { return c.baseURL }

// CreateEvent creates a new Q&A board.
func (c *Client) CreateEvent(ctx context.Context, title, description string) (*Event, error) {
	var out struct {
		Event *Event `json:"event"`
	}
	err := c.do(ctx, http.MethodPost, "/events", map[string]string{
		"title":       title,
		"description": description,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Event, nil
}

// GetEvent fetches event metadata.
func (c *Client) GetEvent(ctx context.Context, eventID string) (*Event, error) {
	var out struct {
		Event *Event `json:"event"`
	}
	if err := c.do(ctx, http.MethodGet, "/events/"+url.PathEscape(eventID), nil, &out); err != nil {
		return nil, err
	}
	return out.Event, nil
}

// Questions fetches the event's question list, sorted by votes.
func (c *Client) Questions(ctx context.Context, eventID string) ([]Question, error) {
	var out struct {
		Questions []Question `json:"questions"`
	}
	if err := c.do(ctx, http.MethodGet, "/events/"+url.PathEscape(eventID)+"/questions", nil, &out); err != nil {
		return nil, err
	}
	return out.Questions, nil
}

// PostQuestion submits a new question.
func (c *Client) PostQuestion(ctx context.Context, eventID, text, authorID string) (*Question, error) {
	var out struct {
		Question *Question `json:"question"`
	}
	err := c.do(ctx, http.MethodPost, "/events/"+url.PathEscape(eventID)+"/questions", map[string]string{
		"text":     text,
		"authorId": authorID,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Question, nil
}

// Vote casts or retracts a vote on a question.
func (c *Client) Vote(ctx context.Context, eventID, questionID, userID, action string) (*Question, error) {
	var out struct {
		Question *Question `json:"question"`
	}
	err := c.do(ctx, http.MethodPost, "/events/"+url.PathEscape(eventID)+"/questions/vote", map[string]string{
		"questionId": questionID,
		"userId":     userID,
		"action":     action,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Question, nil
}

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("client: server returned %d: %s", e.StatusCode, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiResp struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiResp)
		return &APIError{StatusCode: resp.StatusCode, Message: apiResp.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
