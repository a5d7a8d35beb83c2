package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/serhalp/queue-and-eh/internal/retry"
)

// ErrConnectionLost is reported once reconnection attempts are exhausted.
// The stream stays alive in the lost state; Resume restarts it.
var ErrConnectionLost = errors.New("client: connection lost")

// StreamState is the connection lifecycle of a Stream.
type StreamState int

const (
	StateConnecting StreamState = iota
	StateStreaming
	StateReconnecting
	StateLost
	StateClosed
)

func (s StreamState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateReconnecting:
		return "reconnecting"
	case StateLost:
		return "lost"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// UpdateKind discriminates stream pushes.
type UpdateKind int

const (
	UpdateQuestions UpdateKind = iota
	UpdatePresence
)

// Update is one push from the live stream: either a question list or a
// presence summary, never both.
type Update struct {
	Kind      UpdateKind
	Questions []Question
	Presence  *PresenceSummary
	Timestamp int64
}

// StreamOptions configure a subscription.
type StreamOptions struct {
	UserID      string
	Country     string
	CountryName string
	// Filter is an optional CEL expression evaluated server-side per
	// question, e.g. `votes >= 2`.
	Filter string

	// Reconnect policy. Zero values take the defaults: 5 attempts with
	// exponential backoff from 1s.
	MaxAttempts int
	BackoffBase time.Duration
}

// Stream consumes an event's live feed, transparently reconnecting with
// exponential backoff. The attempt counter resets whenever a connection is
// established, so a long-lived stream survives any number of isolated
// drops; only consecutive failures exhaust it.
type Stream struct {
	client  *Client
	eventID string
	opts    StreamOptions
	backoff retry.BackoffFunc

	updates chan Update
	resume  chan struct{}
	cancel  context.CancelFunc

	mu    sync.Mutex
	state StreamState
	err   error
}

// Subscribe opens the live feed for an event. Updates are delivered on
// Updates() until Close is called or the context ends.
func (c *Client) Subscribe(ctx context.Context, eventID string, opts StreamOptions) (*Stream, error) {
	if opts.UserID == "" {
		return nil, errors.New("client: UserID is required")
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = time.Second
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		client:  c,
		eventID: eventID,
		opts:    opts,
		backoff: retry.Exponential(opts.BackoffBase),
		updates: make(chan Update, 16),
		resume:  make(chan struct{}, 1),
		cancel:  cancel,
		state:   StateConnecting,
	}
	go s.run(ctx)
	return s, nil
}

// Updates returns the channel of stream pushes. It is closed when the
// stream shuts down.
func (s *Stream) Updates() <-chan Update { return s.updates }

// State returns the current connection state.
func (s *Stream) State() StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the terminal error, if any.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Resume restarts a lost stream, resetting the attempt counter. It is a
// no-op in any other state. Intended for "page became visible again"
// style triggers.
func (s *Stream) Resume() {
	s.mu.Lock()
	lost := s.state == StateLost
	if lost {
		s.err = nil
	}
	s.mu.Unlock()
	if !lost {
		return
	}
	select {
	case s.resume <- struct{}{}:
	default:
	}
}

// Close tears the stream down.
func (s *Stream) Close() {
	s.cancel()
}

func (s *Stream) setState(st StreamState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Stream) run(ctx context.Context) {
	defer close(s.updates)
	defer s.setState(StateClosed)

	attempt := 0
	for {
		opened, err := s.consume(ctx)
		if ctx.Err() != nil {
			return
		}
		if opened {
			attempt = 0
		}
		attempt++
		if attempt >= s.opts.MaxAttempts {
			s.mu.Lock()
			s.state = StateLost
			s.err = fmt.Errorf("%w: %v", ErrConnectionLost, err)
			s.mu.Unlock()
			select {
			case <-ctx.Done():
				return
			case <-s.resume:
				attempt = 0
				continue
			}
		}
		s.setState(StateReconnecting)
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.backoff(attempt)):
		}
	}
}

// consume runs one connection: open, then read events until the server or
// network drops it. opened reports whether the subscription was accepted,
// which resets the reconnect budget.
func (s *Stream) consume(ctx context.Context) (opened bool, err error) {
	s.setState(StateConnecting)

	q := url.Values{}
	q.Set("userId", s.opts.UserID)
	if s.opts.Country != "" {
		q.Set("country", s.opts.Country)
	}
	if s.opts.CountryName != "" {
		q.Set("countryName", s.opts.CountryName)
	}
	if s.opts.Filter != "" {
		q.Set("filter", s.opts.Filter)
	}
	u := s.client.baseURL + "/events/" + url.PathEscape(s.eventID) + "/stream?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "text/event-stream")

	// The stream outlives any sane request timeout; use a bare transport
	// client rather than the configured one.
	hc := &http.Client{Transport: s.client.hc.Transport}
	resp, err := hc.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, &APIError{StatusCode: resp.StatusCode}
	}

	s.setState(StateStreaming)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var name string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			upd, ok := parseUpdate(name, strings.TrimPrefix(line, "data: "))
			if !ok {
				continue
			}
			select {
			case s.updates <- upd:
			case <-ctx.Done():
				return true, ctx.Err()
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return true, err
	}
	return true, errors.New("client: stream ended")
}

func parseUpdate(name, data string) (Update, bool) {
	switch name {
	case "questions":
		var payload struct {
			Questions []Question `json:"questions"`
			Timestamp int64      `json:"timestamp"`
		}
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			return Update{}, false
		}
		if payload.Questions == nil {
			payload.Questions = []Question{}
		}
		return Update{Kind: UpdateQuestions, Questions: payload.Questions, Timestamp: payload.Timestamp}, true
	case "presence":
		var payload struct {
			Presence  *PresenceSummary `json:"presence"`
			Timestamp int64            `json:"timestamp"`
		}
		if err := json.Unmarshal([]byte(data), &payload); err != nil || payload.Presence == nil {
			return Update{}, false
		}
		return Update{Kind: UpdatePresence, Presence: payload.Presence, Timestamp: payload.Timestamp}, true
	default:
		return Update{}, false
	}
}
