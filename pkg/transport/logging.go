package transport

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rhuss/relaychat/pkg/api"
)

// Logging returns middleware that emits one structured log entry per chat
// request: request ID, transcript length, number of deltas relayed, the
// terminal outcome, and duration.
//
// A stream the client abandoned is logged at info level with outcome
// "cancelled"; it is not a failure of the relay.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next ChatStreamer) ChatStreamer {
		return ChatStreamerFunc(func(ctx context.Context, req *api.ChatRequest, w EventWriter) error {
			start := time.Now()
			ow := &outcomeWriter{EventWriter: w}

			err := next.StreamChat(ctx, req, ow)

			attrs := []slog.Attr{
				slog.String("request_id", RequestIDFromContext(ctx)),
				slog.Int("messages", len(req.Messages)),
				slog.Int("deltas", ow.deltas),
				slog.Duration("duration", time.Since(start)),
			}

			switch {
			case err != nil:
				attrs = append(attrs, slog.String("outcome", "failed"), slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelError, "chat failed", attrs...)
			case ow.terminal == api.EventError:
				attrs = append(attrs, slog.String("outcome", "error"), slog.String("error", ow.errMsg))
				logger.LogAttrs(ctx, slog.LevelWarn, "chat ended with error", attrs...)
			case ow.terminal == api.EventDone:
				attrs = append(attrs, slog.String("outcome", "done"))
				logger.LogAttrs(ctx, slog.LevelInfo, "chat completed", attrs...)
			case errors.Is(ctx.Err(), context.Canceled):
				attrs = append(attrs, slog.String("outcome", "cancelled"))
				logger.LogAttrs(ctx, slog.LevelInfo, "chat cancelled", attrs...)
			default:
				attrs = append(attrs, slog.String("outcome", "incomplete"))
				logger.LogAttrs(ctx, slog.LevelWarn, "chat ended without terminal event", attrs...)
			}

			return err
		})
	}
}

// outcomeWriter observes the events passing through to record how the
// stream ended.
type outcomeWriter struct {
	EventWriter
	deltas   int
	terminal api.StreamEventType
	errMsg   string
}

func (o *outcomeWriter) WriteEvent(ctx context.Context, event api.StreamEvent) error {
	err := o.EventWriter.WriteEvent(ctx, event)
	if err != nil {
		return err
	}
	switch event.Type {
	case api.EventDelta:
		o.deltas++
	case api.EventDone:
		o.terminal = api.EventDone
	case api.EventError:
		o.terminal = api.EventError
		o.errMsg = event.Error
	}
	return nil
}
