package client

import (
	"bytes"
	"encoding/json"

	"github.com/rhuss/relaychat/pkg/api"
	"github.com/rhuss/relaychat/pkg/linebuf"
)

// Decoder turns fragments of an NDJSON response body into stream events.
// Bytes are held until their line is complete; blank and unparsable lines
// are skipped. The zero value is ready to use.
type Decoder struct {
	buf linebuf.Buffer
}

// Feed adds chunk and returns the events on the lines it completed.
func (d *Decoder) Feed(chunk []byte) []api.StreamEvent {
	return parseLines(d.buf.Feed(chunk))
}

// Flush returns the event on an unterminated final line, if any.
func (d *Decoder) Flush() []api.StreamEvent {
	line, ok := d.buf.Flush()
	if !ok {
		return nil
	}
	return parseLines([][]byte{line})
}

func parseLines(lines [][]byte) []api.StreamEvent {
	var events []api.StreamEvent
	for _, line := range lines {
		if ev, ok := ParseEventLine(line); ok {
			events = append(events, ev)
		}
	}
	return events
}

// ParseEventLine decodes one NDJSON line. It reports false for blank lines
// and for anything that is not a recognizable stream event.
func ParseEventLine(line []byte) (api.StreamEvent, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return api.StreamEvent{}, false
	}
	var ev api.StreamEvent
	if err := json.Unmarshal(line, &ev); err != nil {
		return api.StreamEvent{}, false
	}
	return ev, true
}
