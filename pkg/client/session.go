// Package client implements the chat client side of the relay protocol:
// it keeps the transcript, sends it to POST /api/chat, and renders the
// NDJSON reply incrementally.
//
// A Session allows one request in flight at a time. The transcript only
// grows by complete exchanges: an assistant turn is appended when its
// stream ends with a done event, never on error or cancellation.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/rhuss/relaychat/pkg/api"
	"github.com/rhuss/relaychat/pkg/debug"
)

const (
	// DefaultGreeting is shown when a session starts.
	DefaultGreeting = "Ready to chat. Enter sends, Shift+Enter adds a line, Stop interrupts a reply."

	// ClearedGreeting is shown after Clear.
	ClearedGreeting = "Chat cleared. What shall we talk about?"

	chatPath = "/api/chat"
	readSize = 4096
)

var (
	// ErrEmptyInput is returned by Send for blank input.
	ErrEmptyInput = errors.New("client: empty input")

	// ErrBusy is returned by Send while another request is in flight.
	ErrBusy = errors.New("client: a request is already in flight")
)

// Renderer displays the conversation. Calls are made from the goroutine
// running Send, except Greeting which may also come from Clear. A Send
// that was cancelled stops rendering, and leaves Idle to a newer Send that
// is already running.
type Renderer interface {
	// Greeting shows a view-only assistant message that is not part of
	// the transcript.
	Greeting(text string)

	// UserTurn shows a message the user just sent.
	UserTurn(text string)

	// AssistantPending shows a placeholder for the reply being awaited.
	AssistantPending()

	// AssistantDelta replaces the reply with the full text received so far.
	AssistantDelta(full string)

	// AssistantError shows a failure in place of (or after) the reply.
	AssistantError(message string)

	// Idle signals that no request is in flight any more.
	Idle()
}

// Config holds Session settings.
type Config struct {
	// BaseURL is the relay root, e.g. "http://localhost:5500". Required.
	BaseURL string

	// HTTPClient defaults to a client without timeout; streams are
	// bounded by the context passed to Send.
	HTTPClient *http.Client

	// Renderer receives display updates. Required.
	Renderer Renderer

	// Greeting overrides DefaultGreeting.
	Greeting string
}

// Session is one chat conversation.
type Session struct {
	endpoint string
	http     *http.Client
	render   Renderer

	mu         sync.Mutex
	transcript []api.Turn
	cancel     context.CancelFunc // non-nil while a request is in flight
	gen        uint64             // bumped by every Send, Cancel and Clear
}

// New creates a Session and renders its greeting.
func New(cfg Config) (*Session, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("client: base URL is required")
	}
	if cfg.Renderer == nil {
		return nil, errors.New("client: renderer is required")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Greeting == "" {
		cfg.Greeting = DefaultGreeting
	}

	s := &Session{
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + chatPath,
		http:     cfg.HTTPClient,
		render:   cfg.Renderer,
	}
	s.render.Greeting(cfg.Greeting)
	return s, nil
}

// Transcript returns a copy of the conversation so far.
func (s *Session) Transcript() []api.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]api.Turn, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// InFlight reports whether a request is running.
func (s *Session) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Send appends text as a user turn and streams the reply. It blocks until
// the reply ends, fails, or is cancelled.
//
// Blank input returns ErrEmptyInput and a concurrent call returns ErrBusy;
// neither touches the network. Failures are rendered through the Renderer
// before being returned, except cancellation, which returns the context
// error silently.
func (s *Session) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyInput
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return ErrBusy
	}
	s.transcript = append(s.transcript, api.Turn{Role: api.RoleUser, Content: text})
	turns := make([]api.Turn, len(s.transcript))
	copy(turns, s.transcript)

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		if s.gen == gen {
			s.cancel = nil
		}
		idle := s.cancel == nil // false once a newer Send has started
		s.mu.Unlock()
		if idle {
			s.render.Idle()
		}
	}()

	s.render.UserTurn(text)
	s.render.AssistantPending()

	return s.exchange(ctx, gen, turns)
}

// Cancel aborts the request in flight. Text already rendered stays; no
// assistant turn is added. It reports whether there was anything to cancel.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return false
	}
	s.cancel()
	s.cancel = nil
	s.gen++
	return true
}

// Clear cancels any request in flight, empties the transcript, and renders
// a fresh greeting.
func (s *Session) Clear() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
	s.transcript = nil
	s.mu.Unlock()

	s.render.Greeting(ClearedGreeting)
}

// exchange performs one POST /api/chat round trip.
func (s *Session) exchange(ctx context.Context, gen uint64, turns []api.Turn) error {
	body, err := json.Marshal(api.ChatRequest{Messages: turns})
	if err != nil {
		s.renderError(gen, "failed to encode request: "+err.Error())
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		s.renderError(gen, "failed to create request: "+err.Error())
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson")

	debug.Log("client", "sending chat", "url", s.endpoint, "messages", len(turns))

	resp, err := s.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.renderError(gen, "network error: "+err.Error())
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return s.failedResponse(gen, resp)
	}

	var (
		dec  Decoder
		full strings.Builder
	)

	// handle returns false once the stream has ended or the exchange was
	// superseded by Cancel, Clear or a newer Send.
	handle := func(ev api.StreamEvent) bool {
		if !s.current(gen) {
			return false
		}
		switch ev.Type {
		case api.EventError:
			s.render.AssistantError(ev.Error)
		case api.EventDelta:
			if ev.Delta == "" {
				return true
			}
			full.WriteString(ev.Delta)
			s.render.AssistantDelta(full.String())
		case api.EventDone:
			s.finish(ctx, gen, full.String())
			return false
		}
		return true
	}

	chunk := make([]byte, readSize)
	for {
		n, readErr := resp.Body.Read(chunk)
		for _, ev := range dec.Feed(chunk[:n]) {
			if !handle(ev) {
				return ctx.Err()
			}
		}
		if readErr == io.EOF {
			for _, ev := range dec.Flush() {
				if !handle(ev) {
					return ctx.Err()
				}
			}
			return nil
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.renderError(gen, "stream interrupted: "+readErr.Error())
			return readErr
		}
	}
}

// current reports whether gen is still the latest request generation.
func (s *Session) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen
}

// renderError shows message unless the exchange of gen was superseded.
func (s *Session) renderError(gen uint64, message string) {
	if s.current(gen) {
		s.render.AssistantError(message)
	}
}

// finish appends the assistant turn unless the exchange was cancelled or
// cleared meanwhile.
func (s *Session) finish(ctx context.Context, gen uint64, text string) {
	if text == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil || s.gen != gen {
		return
	}
	s.transcript = append(s.transcript, api.Turn{Role: api.RoleAssistant, Content: text})
}

// failedResponse renders a non-success relay answer, preferring the error
// line the relay sends with it.
func (s *Session) failedResponse(gen uint64, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var dec Decoder
	events := append(dec.Feed(data), dec.Flush()...)
	for _, ev := range events {
		if ev.Type == api.EventError {
			s.renderError(gen, ev.Error)
			return &StatusError{Code: resp.StatusCode, Message: ev.Error}
		}
	}

	msg := fmt.Sprintf("relay returned %s", resp.Status)
	s.renderError(gen, msg)
	return &StatusError{Code: resp.StatusCode, Message: msg}
}

// StatusError reports a non-success HTTP status from the relay.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("client: HTTP %d: %s", e.Code, e.Message)
}
