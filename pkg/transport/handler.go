package transport

import (
	"context"

	"github.com/rhuss/relaychat/pkg/api"
)

// ChatStreamer handles one chat request. The implementation writes zero or
// more delta events followed by exactly one terminal event (done or error)
// to w.
//
// Returning an error without having flushed w means the stream never
// opened; the transport then answers with a non-success status and a single
// error line. Returning an error after the stream opened makes the
// transport emit it as the terminal error event, unless one was already
// written.
type ChatStreamer interface {
	StreamChat(ctx context.Context, req *api.ChatRequest, w EventWriter) error
}

// ChatStreamerFunc is an adapter that allows using an ordinary function
// as a ChatStreamer.
type ChatStreamerFunc func(ctx context.Context, req *api.ChatRequest, w EventWriter) error

// StreamChat calls f(ctx, req, w).
func (f ChatStreamerFunc) StreamChat(ctx context.Context, req *api.ChatRequest, w EventWriter) error {
	return f(ctx, req, w)
}

// EventWriter abstracts the streaming output for the handler. The transport
// layer creates an EventWriter for each request.
//
// Calling WriteEvent after a terminal event has been written returns an
// error.
type EventWriter interface {
	// WriteEvent sends a single stream event. The first call commits the
	// response headers if Flush has not done so already.
	WriteEvent(ctx context.Context, event api.StreamEvent) error

	// Flush commits the response headers (if not yet sent) and pushes
	// buffered data to the client. Returns an error if the client has
	// disconnected.
	Flush() error
}
