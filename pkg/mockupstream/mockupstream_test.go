package mockupstream

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rhuss/relaychat/pkg/api"
	"github.com/rhuss/relaychat/pkg/provider"
	"github.com/rhuss/relaychat/pkg/provider/openaicompat"
)

// collect streams prompt through an openaicompat client pointed at h.
func collect(t *testing.T, h http.Handler, prompt string) ([]provider.ProviderEvent, error) {
	t.Helper()
	srv := httptest.NewServer(h)
	defer srv.Close()

	c, err := openaicompat.New(openaicompat.Config{BaseURL: srv.URL + "/v1", APIKey: "test-key"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	ch, err := c.Stream(context.Background(), &provider.ProviderRequest{
		Model:    "mock-model",
		Messages: provider.MessagesFromTurns([]api.Turn{{Role: api.RoleUser, Content: prompt}}),
	})
	if err != nil {
		return nil, err
	}
	var events []provider.ProviderEvent
	for ev := range ch {
		events = append(events, ev)
	}
	return events, nil
}

func text(events []provider.ProviderEvent) (deltas []string, terminal provider.ProviderEventType) {
	terminal = -1
	for _, ev := range events {
		switch ev.Type {
		case provider.ProviderEventTextDelta:
			deltas = append(deltas, ev.Delta)
		default:
			terminal = ev.Type
		}
	}
	return deltas, terminal
}

func TestScenarios(t *testing.T) {
	tests := []struct {
		prompt     string
		wantDeltas []string
	}{
		{"hi", []string{"Hel", "lo"}},
		{"reason", []string{"Thinking. ", "Answer."}},
		{"full", []string{"Complete answer."}},
		{"garbage", []string{"A", "B"}},
		{"nosentinel", []string{"cut ", "short"}},
		{"tell me more", []string{"You ", "said: ", "tell ", "me ", "more"}},
	}
	h := Handler(Config{})
	for _, tt := range tests {
		t.Run(tt.prompt, func(t *testing.T) {
			events, err := collect(t, h, tt.prompt)
			if err != nil {
				t.Fatalf("Stream: %v", err)
			}
			deltas, terminal := text(events)
			if !reflect.DeepEqual(deltas, tt.wantDeltas) {
				t.Errorf("deltas = %q, want %q", deltas, tt.wantDeltas)
			}
			if terminal != provider.ProviderEventDone {
				t.Errorf("terminal = %v, want done", terminal)
			}
		})
	}
}

func TestFailScenario(t *testing.T) {
	_, err := collect(t, Handler(Config{}), "fail")
	if err == nil {
		t.Fatal("expected an error opening the stream")
	}
	if !strings.Contains(err.Error(), "mock upstream failure") {
		t.Errorf("error = %v, want the upstream message", err)
	}
}

func TestAPIKeyRequired(t *testing.T) {
	_, err := collect(t, Handler(Config{APIKey: "other-key"}), "hi")
	if err == nil {
		t.Fatal("expected an authentication error")
	}
}

func TestSlowStopsWhenClientLeaves(t *testing.T) {
	srv := httptest.NewServer(Handler(Config{SlowDelay: 10 * time.Millisecond}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, srv.URL+"/v1/chat/completions",
		strings.NewReader(`{"model":"m","stream":true,"messages":[{"role":"user","content":"slow"}]}`))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()

	buf := make([]byte, 256)
	if _, err := resp.Body.Read(buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	cancel()
	if _, err := io.ReadAll(resp.Body); err == nil {
		t.Error("expected the read to fail after cancel")
	}
}

func TestNonStreamingRejected(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions",
		strings.NewReader(`{"model":"m","messages":[{"role":"user","content":"hi"}]}`))
	Handler(Config{}).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestEchoTokens(t *testing.T) {
	got := echoTokens("  a   b ")
	want := []string{"You ", "said: ", "a ", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("echoTokens = %q, want %q", got, want)
	}
}
