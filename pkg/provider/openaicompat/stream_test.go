package openaicompat

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/rhuss/relaychat/pkg/provider"
)

// collectEvents runs ParseSSEStream over body and returns every event sent.
func collectEvents(t *testing.T, body io.Reader) ([]provider.ProviderEvent, bool) {
	t.Helper()
	ch := make(chan provider.ProviderEvent, 64)
	delivered := ParseSSEStream(context.Background(), body, ch)
	close(ch)

	var events []provider.ProviderEvent
	for ev := range ch {
		events = append(events, ev)
	}
	return events, delivered
}

func deltas(events []provider.ProviderEvent) []string {
	var out []string
	for _, ev := range events {
		if ev.Type == provider.ProviderEventTextDelta {
			out = append(out, ev.Delta)
		}
	}
	return out
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantKind LineKind
		wantText string
	}{
		{"delta content", `data: {"choices":[{"delta":{"content":"Hel"}}]}`, LineDelta, "Hel"},
		{"no space after colon", `data:{"choices":[{"delta":{"content":"x"}}]}`, LineDelta, "x"},
		{"done sentinel", `data: [DONE]`, LineDone, ""},
		{"done without space", `data:[DONE]`, LineDone, ""},
		{"comment", `: OPENROUTER PROCESSING`, LineIgnored, ""},
		{"event field", `event: message`, LineIgnored, ""},
		{"blank", ``, LineIgnored, ""},
		{"malformed json", `data: {not json`, LineIgnored, ""},
		{"empty choices", `data: {"choices":[]}`, LineIgnored, ""},
		{"role only delta", `data: {"choices":[{"delta":{"role":"assistant"}}]}`, LineIgnored, ""},
		{"empty content", `data: {"choices":[{"delta":{"content":""}}]}`, LineIgnored, ""},
		{"null content", `data: {"choices":[{"delta":{"content":null}}]}`, LineIgnored, ""},
		{"message only", `data: {"choices":[{"message":{"content":"Hello"}}]}`, LineDelta, "Hello"},
		{"reasoning then content", `data: {"choices":[{"delta":{"reasoning":"think ","content":"answer"}}]}`, LineDelta, "think answer"},
		{"reasoning only", `data: {"choices":[{"delta":{"reasoning":"hmm"}}]}`, LineDelta, "hmm"},
		{"reasoning_content alias", `data: {"choices":[{"delta":{"reasoning_content":"r"}}]}`, LineDelta, "r"},
		{"delta wins over message", `data: {"choices":[{"delta":{"content":"d"},"message":{"content":"m"}}]}`, LineDelta, "d"},
		{"numeric id", `data: {"id":12345,"choices":[{"delta":{"content":"numeric id"}}]}`, LineDelta, "numeric id"},
		{"string index", `data: {"choices":[{"index":"0","delta":{"content":"a"}}]}`, LineDelta, "a"},
		{"numeric finish_reason", `data: {"choices":[{"finish_reason":7,"delta":{"content":"b"}}]}`, LineDelta, "b"},
		{"object model", `data: {"model":{"name":"x"},"object":1,"choices":[{"delta":{"content":"c"}}]}`, LineDelta, "c"},
		{"non-object delta falls back to message", `data: {"choices":[{"delta":"x","message":{"content":"delta not object"}}]}`, LineDelta, "delta not object"},
		{"null delta falls back to message", `data: {"choices":[{"delta":null,"message":{"content":"m"}}]}`, LineDelta, "m"},
		{"null content falls back to message", `data: {"choices":[{"delta":{"content":null},"message":{"content":"m"}}]}`, LineDelta, "m"},
		{"choices not an array", `data: {"choices":{"delta":{"content":"x"}}}`, LineIgnored, ""},
		{"choice not an object", `data: {"choices":["x"]}`, LineIgnored, ""},
		{"missing choices", `data: {"id":"c1"}`, LineIgnored, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, text := ParseLine([]byte(tt.line))
			if kind != tt.wantKind {
				t.Errorf("kind = %d, want %d", kind, tt.wantKind)
			}
			if text != tt.wantText {
				t.Errorf("text = %q, want %q", text, tt.wantText)
			}
		})
	}
}

const helloStream = "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n" +
	"\n" +
	"data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n" +
	"\n" +
	"data: [DONE]\n" +
	"\n"

func TestParseSSEStream_Basic(t *testing.T) {
	events, delivered := collectEvents(t, strings.NewReader(helloStream))

	if !delivered {
		t.Fatal("expected terminal event to be delivered")
	}
	if got := deltas(events); strings.Join(got, "|") != "Hel|lo" {
		t.Errorf("deltas = %v, want [Hel lo]", got)
	}
	last := events[len(events)-1]
	if last.Type != provider.ProviderEventDone {
		t.Errorf("last event type = %d, want Done", last.Type)
	}
}

func TestParseSSEStream_FragmentationInvariance(t *testing.T) {
	// Deliver the stream one byte per read, and also split at every
	// possible boundary into two reads; the result must not change.
	events, _ := collectEvents(t, iotest.OneByteReader(strings.NewReader(helloStream)))
	if got := deltas(events); strings.Join(got, "|") != "Hel|lo" {
		t.Fatalf("one-byte reads: deltas = %v", got)
	}

	for i := 0; i <= len(helloStream); i++ {
		r := io.MultiReader(strings.NewReader(helloStream[:i]), strings.NewReader(helloStream[i:]))
		events, _ := collectEvents(t, r)
		if got := deltas(events); strings.Join(got, "|") != "Hel|lo" {
			t.Fatalf("split at %d: deltas = %v", i, got)
		}
		if events[len(events)-1].Type != provider.ProviderEventDone {
			t.Fatalf("split at %d: missing done", i)
		}
	}
}

func TestParseSSEStream_CRLF(t *testing.T) {
	body := "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\r\n\r\ndata: [DONE]\r\n\r\n"
	events, _ := collectEvents(t, strings.NewReader(body))

	if got := deltas(events); len(got) != 1 || got[0] != "a" {
		t.Errorf("deltas = %v, want [a]", got)
	}
	if events[len(events)-1].Type != provider.ProviderEventDone {
		t.Error("expected done after sentinel")
	}
}

func TestParseSSEStream_MalformedLineSkipped(t *testing.T) {
	body := "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n" +
		"data: {oops\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"b\"}}]}\n" +
		"data: [DONE]\n"
	events, _ := collectEvents(t, strings.NewReader(body))

	if got := deltas(events); strings.Join(got, "") != "ab" {
		t.Errorf("deltas = %v, want [a b]", got)
	}
	if len(events) != 3 {
		t.Errorf("expected 3 events, got %d", len(events))
	}
}

func TestParseSSEStream_NoSentinel(t *testing.T) {
	body := "data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n"
	events, delivered := collectEvents(t, strings.NewReader(body))

	if !delivered {
		t.Fatal("expected terminal event on natural end")
	}
	if len(events) != 2 || events[1].Type != provider.ProviderEventDone {
		t.Errorf("expected delta then done, got %+v", events)
	}
}

func TestParseSSEStream_UnterminatedLastLine(t *testing.T) {
	body := "data: {\"choices\":[{\"delta\":{\"content\":\"tail\"}}]}"
	events, _ := collectEvents(t, strings.NewReader(body))

	if got := deltas(events); len(got) != 1 || got[0] != "tail" {
		t.Errorf("deltas = %v, want [tail]", got)
	}
}

func TestParseSSEStream_StopsAfterSentinel(t *testing.T) {
	body := "data: [DONE]\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"late\"}}]}\n"
	events, _ := collectEvents(t, strings.NewReader(body))

	if len(events) != 1 || events[0].Type != provider.ProviderEventDone {
		t.Errorf("expected only done, got %+v", events)
	}
}

func TestParseSSEStream_ReadError(t *testing.T) {
	body := io.MultiReader(
		strings.NewReader("data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n"),
		iotest.ErrReader(errors.New("connection reset")),
	)
	events, delivered := collectEvents(t, body)

	if !delivered {
		t.Fatal("expected terminal error event")
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	last := events[1]
	if last.Type != provider.ProviderEventError {
		t.Fatalf("last event type = %d, want Error", last.Type)
	}
	if !strings.Contains(last.Err.Error(), "connection reset") {
		t.Errorf("error = %q, want it to mention the read failure", last.Err.Error())
	}
}

func TestParseSSEStream_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ch := make(chan provider.ProviderEvent)
	delivered := ParseSSEStream(ctx, strings.NewReader(helloStream), ch)
	if delivered {
		t.Error("expected no terminal event after cancellation")
	}
}
