package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rhuss/relaychat/pkg/api"
	"github.com/rhuss/relaychat/pkg/transport"
)

func TestWriteEventNDJSONFormat(t *testing.T) {
	rec := httptest.NewRecorder()
	nw := newNDJSONWriter(rec)
	ctx := context.Background()

	for _, ev := range []api.StreamEvent{api.DeltaEvent("Hel"), api.DeltaEvent("lo"), api.DoneEvent()} {
		if err := nw.WriteEvent(ctx, ev); err != nil {
			t.Fatalf("WriteEvent error: %v", err)
		}
	}

	want := "{\"delta\":\"Hel\"}\n{\"delta\":\"lo\"}\n{\"done\":true}\n"
	if got := rec.Body.String(); got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
	if !rec.Flushed {
		t.Error("expected events to be flushed")
	}
}

func TestWriteEventSetsStreamingHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	nw := newNDJSONWriter(rec)

	if err := nw.WriteEvent(context.Background(), api.DeltaEvent("x")); err != nil {
		t.Fatalf("WriteEvent error: %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	headers := map[string]string{
		"Content-Type":      transport.NDJSONContentType,
		"Cache-Control":     "no-cache",
		"Connection":        "keep-alive",
		"X-Accel-Buffering": "no",
	}
	for k, want := range headers {
		if got := rec.Header().Get(k); got != want {
			t.Errorf("%s = %q, want %q", k, got, want)
		}
	}
}

func TestFlushCommitsHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	nw := newNDJSONWriter(rec)

	if nw.started() {
		t.Fatal("new writer should be idle")
	}
	if err := nw.Flush(); err != nil {
		t.Fatalf("Flush error: %v", err)
	}
	if !nw.started() {
		t.Error("Flush should commit the response")
	}
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != transport.NDJSONContentType {
		t.Errorf("unexpected commit: status=%d content-type=%q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if rec.Body.Len() != 0 {
		t.Errorf("Flush must not write a body, got %q", rec.Body.String())
	}
}

func TestWriteEventAfterTerminalFails(t *testing.T) {
	for _, terminal := range []api.StreamEvent{api.DoneEvent(), api.ErrorEvent("boom")} {
		rec := httptest.NewRecorder()
		nw := newNDJSONWriter(rec)
		ctx := context.Background()

		if err := nw.WriteEvent(ctx, terminal); err != nil {
			t.Fatalf("WriteEvent(%s) error: %v", terminal.Type, err)
		}
		if !nw.completed() {
			t.Errorf("writer should be completed after %s", terminal.Type)
		}
		if err := nw.WriteEvent(ctx, api.DeltaEvent("late")); err == nil {
			t.Errorf("expected error writing after %s", terminal.Type)
		}
		if err := nw.WriteEvent(ctx, api.DoneEvent()); err == nil {
			t.Errorf("expected error writing a second terminal after %s", terminal.Type)
		}
	}
}

func TestWriteEventUntypedFails(t *testing.T) {
	rec := httptest.NewRecorder()
	nw := newNDJSONWriter(rec)

	if err := nw.WriteEvent(context.Background(), api.StreamEvent{}); err == nil {
		t.Fatal("expected marshal error for untyped event")
	}
	if nw.started() {
		t.Error("a failed marshal must not commit the response")
	}
}
