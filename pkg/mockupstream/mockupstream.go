// Package mockupstream is a deterministic OpenAI-compatible chat
// completions server. The reply is chosen from the last user message:
//
//	hi           streams "Hel", "lo"
//	reason       streams a reasoning delta before the content
//	full         sends a chunk carrying only choices[0].message.content
//	garbage      mixes non-JSON and non-data lines into the stream
//	nosentinel   ends the body without the [DONE] sentinel
//	fail         answers HTTP 500 with an OpenAI error body
//	slow         streams many tokens with a pause between them
//
// Anything else is echoed back word by word.
package mockupstream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Config tunes the mock server.
type Config struct {
	// APIKey, when set, is required as a bearer credential.
	APIKey string

	// SlowDelay is the pause between tokens of the "slow" reply.
	// Defaults to 100ms.
	SlowDelay time.Duration
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Handler returns the mock's routes, rooted so that the relay's base URL
// is "<server>/v1".
func Handler(cfg Config) http.Handler {
	if cfg.SlowDelay <= 0 {
		cfg.SlowDelay = 100 * time.Millisecond
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		handleChatCompletions(w, r, cfg)
	})
	mux.HandleFunc("GET /v1/models", handleModels)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	return mux
}

func handleChatCompletions(w http.ResponseWriter, r *http.Request, cfg Config) {
	if cfg.APIKey != "" && r.Header.Get("Authorization") != "Bearer "+cfg.APIKey {
		writeError(w, http.StatusUnauthorized, "invalid API key", "authentication_error")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", "invalid_request_error")
		return
	}
	if !req.Stream {
		writeError(w, http.StatusBadRequest, "only streaming requests are supported", "invalid_request_error")
		return
	}

	prompt := strings.ToLower(strings.TrimSpace(lastUserMessage(req.Messages)))
	slog.Debug("mock upstream request", "model", req.Model, "messages", len(req.Messages), "prompt", prompt)

	if prompt == "fail" {
		writeError(w, http.StatusInternalServerError, "mock upstream failure", "server_error")
		return
	}

	s, ok := newSSEWriter(w)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	model := req.Model
	if model == "" {
		model = "mock-model"
	}

	s.chunk(model, map[string]any{"role": "assistant"})

	switch prompt {
	case "hi":
		s.tokens(r, model, []string{"Hel", "lo"}, 0)
	case "reason":
		s.chunk(model, map[string]any{"reasoning": "Thinking. "})
		s.tokens(r, model, []string{"Answer."}, 0)
	case "full":
		s.raw(fmt.Sprintf(`{"id":"chatcmpl-mock","object":"chat.completion.chunk","model":%q,"choices":[{"index":0,"message":{"role":"assistant","content":"Complete answer."}}]}`, model))
	case "garbage":
		s.tokens(r, model, []string{"A"}, 0)
		s.line(": keep-alive comment")
		s.line("event: ping")
		s.raw("{not json")
		s.tokens(r, model, []string{"B"}, 0)
	case "nosentinel":
		s.tokens(r, model, []string{"cut ", "short"}, 0)
		return
	case "slow":
		tokens := make([]string, 200)
		for i := range tokens {
			tokens[i] = fmt.Sprintf("t%d ", i)
		}
		if !s.tokens(r, model, tokens, cfg.SlowDelay) {
			return
		}
	default:
		s.tokens(r, model, echoTokens(lastUserMessage(req.Messages)), 0)
	}

	s.finish(model)
	s.raw("[DONE]")
}

// sseWriter writes chat.completion.chunk events and flushes each one.
type sseWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, bool) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	return &sseWriter{w: w, f: f}, true
}

func (s *sseWriter) line(text string) {
	fmt.Fprintf(s.w, "%s\n", text)
	s.f.Flush()
}

func (s *sseWriter) raw(data string) {
	fmt.Fprintf(s.w, "data: %s\n\n", data)
	s.f.Flush()
}

func (s *sseWriter) chunk(model string, delta map[string]any) {
	data, _ := json.Marshal(map[string]any{
		"id":     "chatcmpl-mock",
		"object": "chat.completion.chunk",
		"model":  model,
		"choices": []any{map[string]any{
			"index":         0,
			"delta":         delta,
			"finish_reason": nil,
		}},
	})
	s.raw(string(data))
}

// tokens streams content deltas, pausing delay between them. It reports
// false if the client went away.
func (s *sseWriter) tokens(r *http.Request, model string, tokens []string, delay time.Duration) bool {
	for i, tok := range tokens {
		if i > 0 && delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return false
			}
		}
		s.chunk(model, map[string]any{"content": tok})
	}
	return r.Context().Err() == nil
}

func (s *sseWriter) finish(model string) {
	data, _ := json.Marshal(map[string]any{
		"id":     "chatcmpl-mock",
		"object": "chat.completion.chunk",
		"model":  model,
		"choices": []any{map[string]any{
			"index":         0,
			"delta":         map[string]any{},
			"finish_reason": "stop",
		}},
	})
	s.raw(string(data))
}

func writeError(w http.ResponseWriter, status int, message, typ string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"message": message, "type": typ},
	})
}

func handleModels(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"data": []any{map[string]any{
			"id":       "mock-model",
			"object":   "model",
			"owned_by": "relaychat",
		}},
	})
}

func lastUserMessage(msgs []chatMessage) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == "user" {
			return msgs[i].Content
		}
	}
	return ""
}

// echoTokens splits "You said: <text>" into word-sized deltas.
func echoTokens(text string) []string {
	words := strings.Fields("You said: " + text)
	out := make([]string, len(words))
	for i, w := range words {
		if i < len(words)-1 {
			w += " "
		}
		out[i] = w
	}
	return out
}
