package api

import (
	"encoding/json"
	"errors"
)

// StreamEventType identifies the kind of a StreamEvent.
type StreamEventType int

const (
	EventDelta StreamEventType = iota + 1
	EventDone
	EventError
)

// String returns the JSON field name that carries the event.
func (t StreamEventType) String() string {
	switch t {
	case EventDelta:
		return "delta"
	case EventDone:
		return "done"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// StreamEvent is one record of the relay's NDJSON response stream.
// On the wire it is exactly one of:
//
//	{"delta":"text"}
//	{"done":true}
//	{"error":"message"}
type StreamEvent struct {
	Type  StreamEventType
	Delta string
	Error string
}

// DeltaEvent returns an incremental text event.
func DeltaEvent(text string) StreamEvent {
	return StreamEvent{Type: EventDelta, Delta: text}
}

// DoneEvent returns the successful terminal event.
func DoneEvent() StreamEvent {
	return StreamEvent{Type: EventDone}
}

// ErrorEvent returns the failed terminal event.
func ErrorEvent(message string) StreamEvent {
	return StreamEvent{Type: EventError, Error: message}
}

// IsTerminal reports whether no further events may follow e.
func (e StreamEvent) IsTerminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

type wireEvent struct {
	Delta *string `json:"delta,omitempty"`
	Done  *bool   `json:"done,omitempty"`
	Error *string `json:"error,omitempty"`
}

// MarshalJSON encodes the event as a single-field object.
func (e StreamEvent) MarshalJSON() ([]byte, error) {
	var w wireEvent
	switch e.Type {
	case EventDelta:
		w.Delta = &e.Delta
	case EventDone:
		done := true
		w.Done = &done
	case EventError:
		w.Error = &e.Error
	default:
		return nil, errors.New("api: stream event has no type")
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a wire record. When several fields are present the
// error field wins, then delta, then done.
func (e *StreamEvent) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch {
	case w.Error != nil:
		*e = ErrorEvent(*w.Error)
	case w.Delta != nil:
		*e = DeltaEvent(*w.Delta)
	case w.Done != nil && *w.Done:
		*e = DoneEvent()
	default:
		return errors.New("api: unrecognized stream event")
	}
	return nil
}
