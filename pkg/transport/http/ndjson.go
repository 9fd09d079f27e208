package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/rhuss/relaychat/pkg/api"
	"github.com/rhuss/relaychat/pkg/transport"
)

// writerState tracks the state of an NDJSON EventWriter.
type writerState int

const (
	writerIdle      writerState = iota // Headers not yet committed
	writerStreaming                    // 200 and streaming headers sent
	writerCompleted                    // Terminal event sent
)

// ndjsonWriter implements transport.EventWriter for HTTP responses framed as
// newline-delimited JSON: one compact event object per line, flushed as
// soon as it is written.
type ndjsonWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController

	mu    sync.Mutex
	state writerState
}

var _ transport.EventWriter = (*ndjsonWriter)(nil)

func newNDJSONWriter(w http.ResponseWriter) *ndjsonWriter {
	return &ndjsonWriter{
		w:  w,
		rc: http.NewResponseController(w),
	}
}

// commitLocked sends the status line and streaming headers. X-Accel-Buffering
// keeps nginx-style proxies from holding events back.
func (n *ndjsonWriter) commitLocked() {
	h := n.w.Header()
	h.Set("Content-Type", transport.NDJSONContentType)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	n.w.WriteHeader(http.StatusOK)
	n.state = writerStreaming
}

// WriteEvent sends a single event as
//
//	{json}\n
//
// and flushes it. After a terminal event the writer is completed and
// further calls fail.
func (n *ndjsonWriter) WriteEvent(ctx context.Context, event api.StreamEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state == writerCompleted {
		return errors.New("cannot write event: writer is completed")
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if n.state == writerIdle {
		n.commitLocked()
	}
	if event.IsTerminal() {
		n.state = writerCompleted
	}

	if _, err := n.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if err := n.rc.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	return nil
}

// Flush commits the headers if needed and pushes buffered data to the client.
func (n *ndjsonWriter) Flush() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state == writerIdle {
		n.commitLocked()
	}
	return n.rc.Flush()
}

// started reports whether the status line has been sent.
func (n *ndjsonWriter) started() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state != writerIdle
}

// completed reports whether a terminal event has been sent.
func (n *ndjsonWriter) completed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state == writerCompleted
}
