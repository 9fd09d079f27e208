package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"

	"github.com/rhuss/relaychat/pkg/api"
	"github.com/rhuss/relaychat/pkg/debug"
	"github.com/rhuss/relaychat/pkg/transport"
)

// ChatPath is the route of the streaming chat endpoint.
const ChatPath = "/api/chat"

// Adapter serves the chat API, health check, and SPA bundle over HTTP.
type Adapter struct {
	streamer transport.ChatStreamer
	inflight *transport.InFlightRegistry
	mux      *http.ServeMux
	config   Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	// MaxBodySize caps the POST /api/chat body.
	MaxBodySize int64

	// Static is the SPA bundle served on every other GET path.
	// Nil disables static serving.
	Static fs.FS

	// Extra routes mounted on the mux (e.g. "GET /metrics").
	Extra map[string]http.Handler
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize: 10 << 20, // 10 MB
	}
}

// NewAdapter creates an HTTP adapter for streamer.
// Middleware is applied to the streamer in the given order.
func NewAdapter(streamer transport.ChatStreamer, cfg Config, middlewares ...transport.Middleware) *Adapter {
	if len(middlewares) > 0 {
		streamer = transport.Chain(middlewares...)(streamer)
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultConfig().MaxBodySize
	}

	a := &Adapter{
		streamer: streamer,
		inflight: transport.NewInFlightRegistry(),
		mux:      http.NewServeMux(),
		config:   cfg,
	}

	a.mux.HandleFunc("POST "+ChatPath, a.handleChat)
	a.mux.HandleFunc("GET /healthz", handleHealth)
	for pattern, h := range cfg.Extra {
		a.mux.Handle(pattern, h)
	}
	if cfg.Static != nil {
		a.mux.Handle("GET /", spaHandler(cfg.Static))
	}

	return a
}

// Handler returns the http.Handler for this adapter. Use this to integrate
// with an http.Server or test with httptest. The returned handler includes
// HTTP-level middleware for request ID propagation.
func (a *Adapter) Handler() http.Handler {
	return httpRequestIDMiddleware(a.mux)
}

// InFlight returns the registry of open chat streams.
func (a *Adapter) InFlight() *transport.InFlightRegistry {
	return a.inflight
}

// httpRequestIDMiddleware propagates the X-Request-ID header. A client
// supplied ID is reused; otherwise a new one is generated. The ID is put in
// the request context and echoed in the response headers.
func httpRequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = transport.NewRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(transport.ContextWithRequestID(r.Context(), id)))
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// handleChat handles POST /api/chat.
func (a *Adapter) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	data, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorLine(w,
				api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge,
			)
			return
		}
		transport.WriteAPIError(w, api.NewInvalidRequestError("body", "failed to read request body"))
		return
	}

	// A malformed body is an empty transcript, not a rejection.
	req := api.DecodeChatRequest(data)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The client may reuse X-Request-ID, so the registry gets its own key.
	key := transport.NewRequestID()
	a.inflight.Register(key, cancel)
	defer a.inflight.Remove(key)

	debug.Log("transport", "chat request",
		"request_id", transport.RequestIDFromContext(ctx),
		"messages", len(req.Messages),
		"remote", r.RemoteAddr,
	)

	nw := newNDJSONWriter(w)
	if err := a.streamer.StreamChat(ctx, &req, nw); err != nil {
		a.writeHandlerError(ctx, w, nw, err)
	}
}

// writeHandlerError reports a handler failure. Before the stream opened it
// becomes a failure status with a single error line; after that, a
// terminal error event, unless one was already sent. Nothing is written to
// a client that has gone away.
func (a *Adapter) writeHandlerError(ctx context.Context, w http.ResponseWriter, nw *ndjsonWriter, err error) {
	if ctx.Err() != nil {
		return
	}

	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		apiErr = api.NewServerError(err.Error())
	}

	if !nw.started() {
		transport.WriteAPIError(w, apiErr)
		return
	}
	if nw.completed() {
		return
	}
	nw.WriteEvent(ctx, api.ErrorEvent(apiErr.Message))
}
