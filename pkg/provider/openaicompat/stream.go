package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/rhuss/relaychat/pkg/api"
	"github.com/rhuss/relaychat/pkg/debug"
	"github.com/rhuss/relaychat/pkg/linebuf"
	"github.com/rhuss/relaychat/pkg/provider"
)

// LineKind classifies one line of the upstream SSE stream.
type LineKind int

const (
	LineIgnored LineKind = iota // not an event, malformed, or carries no text
	LineDone                    // the [DONE] termination sentinel
	LineDelta                   // an event carrying text
)

const (
	dataPrefix   = "data:"
	doneSentinel = "[DONE]"
)

// ParseLine interprets one complete SSE line.
//
//	data: {"choices":[{"delta":{"content":"Hel"}}]}   -> LineDelta, "Hel"
//	data: [DONE]                                       -> LineDone
//	: keep-alive / event: x / blank                    -> LineIgnored
//	data: {not json}                                   -> LineIgnored
func ParseLine(line []byte) (LineKind, string) {
	if !bytes.HasPrefix(line, []byte(dataPrefix)) {
		return LineIgnored, ""
	}
	payload := bytes.TrimLeft(line[len(dataPrefix):], " \t")

	if string(payload) == doneSentinel {
		return LineDone, ""
	}

	var chunk ChatCompletionChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		debug.Log("upstream", "skipping malformed SSE chunk",
			"error", err.Error(),
			"data", debug.Truncate(string(payload), 200),
		)
		return LineIgnored, ""
	}

	text := ExtractChunkText(&chunk)
	if text == "" {
		return LineIgnored, ""
	}
	return LineDelta, text
}

// ParseSSEStream reads Chat Completions SSE lines from body, translates them
// to ProviderEvent values, and sends them on ch. The channel is NOT closed
// by this function; the caller is responsible for closing it.
//
// Exactly one terminal event is sent unless ctx ends first: ProviderEventDone
// on the [DONE] sentinel or on a clean end of body, ProviderEventError when
// reading the body fails. Bytes after the sentinel are never read. The
// return value reports whether a terminal event was delivered.
func ParseSSEStream(ctx context.Context, body io.Reader, ch chan<- provider.ProviderEvent) bool {
	send := func(ev provider.ProviderEvent) bool {
		select {
		case ch <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	sawSentinel := false
	delivered := false

	err := linebuf.Each(body, func(line []byte) bool {
		if ctx.Err() != nil {
			return false
		}
		kind, text := ParseLine(line)
		switch kind {
		case LineDone:
			sawSentinel = true
			delivered = send(provider.ProviderEvent{Type: provider.ProviderEventDone})
			return false
		case LineDelta:
			return send(provider.ProviderEvent{Type: provider.ProviderEventTextDelta, Delta: text})
		}
		return true
	})

	if sawSentinel || ctx.Err() != nil {
		return delivered
	}

	if err != nil {
		debug.Log("upstream", "SSE stream read error", "error", err.Error())
		return send(provider.ProviderEvent{
			Type: provider.ProviderEventError,
			Err:  api.NewUpstreamError("upstream stream error: " + err.Error()),
		})
	}

	// Body ended without the sentinel.
	return send(provider.ProviderEvent{Type: provider.ProviderEventDone})
}
