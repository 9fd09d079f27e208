// Package linebuf reassembles newline-terminated lines from a fragmented
// byte stream.
//
// Network reads deliver bytes at arbitrary boundaries: a read may end in the
// middle of a line or carry several lines at once. Split is the pure core of
// the reassembly, (carry, chunk) -> (complete lines, new carry), so it can be
// tested without a socket. Buffer and Each wrap it for stateful and
// io.Reader-driven use.
package linebuf

import (
	"bytes"
	"errors"
	"io"
)

// DefaultReadSize is the chunk size Each reads from its source.
const DefaultReadSize = 4096

// Split appends chunk to the carried-over partial line and returns every
// complete line now available together with the new carry-over. Lines are
// returned without their terminating "\n"; a trailing "\r" is dropped as well.
//
// The returned slices never alias chunk, so callers may reuse their read
// buffer immediately.
func Split(carry, chunk []byte) (lines [][]byte, rest []byte) {
	// Force a copy so the result is independent of both inputs.
	data := make([]byte, 0, len(carry)+len(chunk))
	data = append(data, carry...)
	data = append(data, chunk...)

	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, bytes.TrimSuffix(data[:i], []byte("\r")))
		data = data[i+1:]
	}
	return lines, data
}

// Buffer is a stateful wrapper around Split. The zero value is ready to use.
// A Buffer is not safe for concurrent use.
type Buffer struct {
	carry []byte
}

// Feed adds chunk and returns the lines it completed.
func (b *Buffer) Feed(chunk []byte) [][]byte {
	lines, rest := Split(b.carry, chunk)
	b.carry = rest
	return lines
}

// Pending returns the bytes of the current incomplete line.
func (b *Buffer) Pending() []byte {
	return b.carry
}

// Flush returns the incomplete trailing line, if any, and resets the buffer.
// It is used at end of stream, where an unterminated line is still a line.
func (b *Buffer) Flush() ([]byte, bool) {
	if len(b.carry) == 0 {
		return nil, false
	}
	line := bytes.TrimSuffix(b.carry, []byte("\r"))
	b.carry = nil
	return line, true
}

// Each reads r until EOF and calls fn for every complete line, in order.
// An unterminated final line is delivered at EOF. If fn returns false, Each
// stops reading and returns nil. A read error other than io.EOF is returned
// after all lines preceding it have been delivered.
func Each(r io.Reader, fn func(line []byte) bool) error {
	var buf Buffer
	chunk := make([]byte, DefaultReadSize)

	for {
		n, err := r.Read(chunk)
		if n > 0 {
			for _, line := range buf.Feed(chunk[:n]) {
				if !fn(line) {
					return nil
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				if line, ok := buf.Flush(); ok {
					fn(line)
				}
				return nil
			}
			return err
		}
	}
}
