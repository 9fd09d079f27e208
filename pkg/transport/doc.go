// Package transport defines the handler contract and middleware chain for
// the relay's HTTP/NDJSON transport layer.
//
// The transport layer bridges the chat client and the streaming relay. It
// decodes incoming chat requests into the types defined in pkg/api,
// dispatches them for processing, and serializes the resulting stream
// events back to the client as newline-delimited JSON.
//
// # Handler Contract
//
// ChatStreamer handles the single chat operation. The implementation
// receives a transcript and writes stream events to an EventWriter, which
// hides the wire framing from the handler.
//
// # Middleware
//
// The middleware chain wraps ChatStreamer with cross-cutting concerns.
// Built-in middleware provides panic recovery, request ID assignment
// (X-Request-ID, generated with google/uuid), and structured logging via
// log/slog.
//
// # In-flight Streams
//
// InFlightRegistry keeps the cancel function of every open stream so that
// a shutting-down server can abort streams still running when its grace
// period ends.
package transport
