// Package relay implements the streaming chat relay: it forwards a
// transcript to the upstream provider and re-emits the provider's events
// as normalized stream events, one per line, while the upstream is still
// producing them.
package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rhuss/relaychat/pkg/api"
	"github.com/rhuss/relaychat/pkg/debug"
	"github.com/rhuss/relaychat/pkg/observability"
	"github.com/rhuss/relaychat/pkg/provider"
	"github.com/rhuss/relaychat/pkg/transport"
)

// Config holds relay settings.
type Config struct {
	// Model is the upstream model identifier sent with every request.
	// It is fixed per process; clients cannot select it.
	Model string
}

// Relay is a transport.ChatStreamer backed by a single provider.
// It holds no per-request state and is safe for concurrent use.
type Relay struct {
	provider provider.Provider
	cfg      Config
}

var _ transport.ChatStreamer = (*Relay)(nil)

// New creates a Relay for p.
func New(p provider.Provider, cfg Config) (*Relay, error) {
	if p == nil {
		return nil, errors.New("relay: provider is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("relay: model is required")
	}
	return &Relay{provider: p, cfg: cfg}, nil
}

// Upstream outcome label values.
const (
	outcomeDone      = "done"
	outcomeError     = "error"
	outcomeCancelled = "cancelled"
	outcomeFailed    = "failed"
)

// StreamChat relays one chat request.
//
// If the upstream cannot be opened, the provider's error is returned before
// anything is written, so the transport can answer with a failure status.
// Once the upstream is open the response is committed and every outcome is
// reported in-band: deltas as they arrive, then exactly one done or error
// event. When ctx is cancelled (client disconnect) the upstream is released
// and nothing further is written.
func (r *Relay) StreamChat(ctx context.Context, req *api.ChatRequest, w transport.EventWriter) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	name := r.provider.Name()

	preq := &provider.ProviderRequest{
		Model:    r.cfg.Model,
		Messages: provider.MessagesFromTurns(req.Messages),
	}

	debug.Log("relay", "opening upstream",
		"request_id", transport.RequestIDFromContext(ctx),
		"provider", name,
		"messages", len(preq.Messages),
	)

	events, err := r.provider.Stream(ctx, preq)
	if err != nil {
		observability.UpstreamRequestsTotal.WithLabelValues(name, outcomeFailed).Inc()
		return err
	}

	outcome := outcomeCancelled
	defer func() {
		observability.UpstreamRequestsTotal.WithLabelValues(name, outcome).Inc()
		observability.UpstreamLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()

	// Commit the 200 and streaming headers now that the upstream accepted
	// the request.
	if err := w.Flush(); err != nil {
		return fmt.Errorf("committing stream: %w", err)
	}

	firstDelta := true
	for ev := range events {
		switch ev.Type {
		case provider.ProviderEventTextDelta:
			if firstDelta {
				observability.UpstreamFirstDelta.WithLabelValues(name).Observe(time.Since(start).Seconds())
				firstDelta = false
			}
			if err := r.write(ctx, w, api.DeltaEvent(ev.Delta)); err != nil {
				return err
			}

		case provider.ProviderEventDone:
			outcome = outcomeDone
			return r.write(ctx, w, api.DoneEvent())

		case provider.ProviderEventError:
			outcome = outcomeError
			return r.write(ctx, w, api.ErrorEvent(errorMessage(ev.Err)))
		}
	}

	// The provider closed the channel without a terminal event. That only
	// happens when ctx ended; if the client is gone there is nobody to tell.
	if ctx.Err() != nil {
		debug.Log("relay", "stream abandoned by client",
			"request_id", transport.RequestIDFromContext(ctx),
		)
		return nil
	}
	outcome = outcomeDone
	return r.write(ctx, w, api.DoneEvent())
}

func (r *Relay) write(ctx context.Context, w transport.EventWriter, ev api.StreamEvent) error {
	if err := w.WriteEvent(ctx, ev); err != nil {
		return fmt.Errorf("writing %s event: %w", ev.Type, err)
	}
	observability.StreamEventsTotal.WithLabelValues(ev.Type.String()).Inc()
	return nil
}

// errorMessage extracts the client-facing text of an upstream failure.
func errorMessage(err error) string {
	if err == nil {
		return "upstream stream error"
	}
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
