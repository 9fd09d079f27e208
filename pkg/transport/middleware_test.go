package transport

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/rhuss/relaychat/pkg/api"
)

// recordingWriter is a minimal EventWriter for testing middleware.
type recordingWriter struct {
	events  []api.StreamEvent
	flushed bool
}

func (w *recordingWriter) WriteEvent(_ context.Context, event api.StreamEvent) error {
	w.events = append(w.events, event)
	return nil
}

func (w *recordingWriter) Flush() error {
	w.flushed = true
	return nil
}

func chatReq(texts ...string) *api.ChatRequest {
	req := &api.ChatRequest{}
	for _, t := range texts {
		req.Messages = append(req.Messages, api.Turn{Role: api.RoleUser, Content: t})
	}
	return req
}

func TestChainAppliesMiddlewareInOrder(t *testing.T) {
	var order []string

	mw := func(name string) Middleware {
		return func(next ChatStreamer) ChatStreamer {
			return ChatStreamerFunc(func(ctx context.Context, req *api.ChatRequest, w EventWriter) error {
				order = append(order, name+":before")
				err := next.StreamChat(ctx, req, w)
				order = append(order, name+":after")
				return err
			})
		}
	}

	handler := ChatStreamerFunc(func(ctx context.Context, req *api.ChatRequest, w EventWriter) error {
		order = append(order, "handler")
		return nil
	})

	wrapped := Chain(mw("first"), mw("second"), mw("third"))(handler)
	wrapped.StreamChat(context.Background(), chatReq(), &recordingWriter{})

	expected := []string{
		"first:before", "second:before", "third:before",
		"handler",
		"third:after", "second:after", "first:after",
	}

	if len(order) != len(expected) {
		t.Fatalf("execution order length = %d, want %d: %v", len(order), len(expected), order)
	}
	for i, got := range order {
		if got != expected[i] {
			t.Errorf("order[%d] = %q, want %q", i, got, expected[i])
		}
	}
}

func TestRecoveryCatchesPanic(t *testing.T) {
	handler := ChatStreamerFunc(func(ctx context.Context, req *api.ChatRequest, w EventWriter) error {
		panic("test panic")
	})

	err := Recovery()(handler).StreamChat(context.Background(), chatReq(), &recordingWriter{})
	if err == nil {
		t.Fatal("expected error after panic, got nil")
	}

	apiErr, ok := err.(*api.APIError)
	if !ok {
		t.Fatalf("expected *api.APIError, got %T: %v", err, err)
	}
	if apiErr.Type != api.ErrorTypeServerError {
		t.Errorf("error type = %q, want %q", apiErr.Type, api.ErrorTypeServerError)
	}
	if !strings.Contains(apiErr.Message, "test panic") {
		t.Errorf("error message = %q, should contain %q", apiErr.Message, "test panic")
	}
}

func TestRecoveryPassesThroughNormalExecution(t *testing.T) {
	handler := ChatStreamerFunc(func(ctx context.Context, req *api.ChatRequest, w EventWriter) error {
		return nil
	})

	if err := Recovery()(handler).StreamChat(context.Background(), chatReq(), &recordingWriter{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequestIDGeneratesNewID(t *testing.T) {
	var capturedID string

	handler := ChatStreamerFunc(func(ctx context.Context, req *api.ChatRequest, w EventWriter) error {
		capturedID = RequestIDFromContext(ctx)
		return nil
	})

	RequestID()(handler).StreamChat(context.Background(), chatReq(), &recordingWriter{})

	if capturedID == "" {
		t.Fatal("expected a generated request ID, got empty string")
	}
	if _, err := uuid.Parse(capturedID); err != nil {
		t.Errorf("request ID %q is not a UUID: %v", capturedID, err)
	}
}

func TestRequestIDPropagatesExisting(t *testing.T) {
	var capturedID string

	handler := ChatStreamerFunc(func(ctx context.Context, req *api.ChatRequest, w EventWriter) error {
		capturedID = RequestIDFromContext(ctx)
		return nil
	})

	ctx := ContextWithRequestID(context.Background(), "existing-id-123")
	RequestID()(handler).StreamChat(ctx, chatReq(), &recordingWriter{})

	if capturedID != "existing-id-123" {
		t.Errorf("request ID = %q, want %q", capturedID, "existing-id-123")
	}
}

func TestRequestIDUniqueness(t *testing.T) {
	ids := make(map[string]bool)
	handler := ChatStreamerFunc(func(ctx context.Context, req *api.ChatRequest, w EventWriter) error {
		ids[RequestIDFromContext(ctx)] = true
		return nil
	})

	wrapped := RequestID()(handler)
	for i := 0; i < 100; i++ {
		wrapped.StreamChat(context.Background(), chatReq(), &recordingWriter{})
	}

	if len(ids) != 100 {
		t.Errorf("expected 100 unique IDs, got %d", len(ids))
	}
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func TestLoggingEmitsFields(t *testing.T) {
	var buf bytes.Buffer

	handler := ChatStreamerFunc(func(ctx context.Context, req *api.ChatRequest, w EventWriter) error {
		w.WriteEvent(ctx, api.DeltaEvent("Hel"))
		w.WriteEvent(ctx, api.DeltaEvent("lo"))
		return w.WriteEvent(ctx, api.DoneEvent())
	})

	rec := &recordingWriter{}
	ctx := ContextWithRequestID(context.Background(), "req-log-test")
	Logging(newTestLogger(&buf))(handler).StreamChat(ctx, chatReq("hi", "again"), rec)

	output := buf.String()
	for _, expected := range []string{"request_id=req-log-test", "messages=2", "deltas=2", "outcome=done", "chat completed"} {
		if !strings.Contains(output, expected) {
			t.Errorf("log output missing %q in:\n%s", expected, output)
		}
	}
	if len(rec.events) != 3 {
		t.Errorf("events not passed through: %d", len(rec.events))
	}
}

func TestLoggingErrorEvent(t *testing.T) {
	var buf bytes.Buffer

	handler := ChatStreamerFunc(func(ctx context.Context, req *api.ChatRequest, w EventWriter) error {
		return w.WriteEvent(ctx, api.ErrorEvent("upstream stream error: reset"))
	})

	Logging(newTestLogger(&buf))(handler).StreamChat(context.Background(), chatReq("hi"), &recordingWriter{})

	output := buf.String()
	if !strings.Contains(output, "outcome=error") || !strings.Contains(output, "upstream stream error") {
		t.Errorf("unexpected log output:\n%s", output)
	}
}

func TestLoggingEmitsErrorOnFailure(t *testing.T) {
	var buf bytes.Buffer

	handler := ChatStreamerFunc(func(ctx context.Context, req *api.ChatRequest, w EventWriter) error {
		return api.NewUpstreamUnavailableError("test failure")
	})

	Logging(newTestLogger(&buf))(handler).StreamChat(context.Background(), chatReq(), &recordingWriter{})

	output := buf.String()
	if !strings.Contains(output, "chat failed") {
		t.Errorf("log output missing 'chat failed' in:\n%s", output)
	}
	if !strings.Contains(output, "test failure") {
		t.Errorf("log output missing error message in:\n%s", output)
	}
}

func TestLoggingCancelled(t *testing.T) {
	var buf bytes.Buffer

	ctx, cancel := context.WithCancel(context.Background())
	handler := ChatStreamerFunc(func(ctx context.Context, req *api.ChatRequest, w EventWriter) error {
		w.WriteEvent(ctx, api.DeltaEvent("partial"))
		cancel()
		return nil
	})

	Logging(newTestLogger(&buf))(handler).StreamChat(ctx, chatReq("hi"), &recordingWriter{})

	if !strings.Contains(buf.String(), "outcome=cancelled") {
		t.Errorf("expected cancelled outcome in:\n%s", buf.String())
	}
}
