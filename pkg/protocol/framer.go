package protocol

import (
	"bytes"
	"strings"
)

// RawLine is one complete protocol line with its terminator stripped.
// It is always valid UTF-8.
type RawLine string

// Framer splits a byte stream into lines. Bytes after the last line
// terminator are kept until the next Feed.
//
// A Framer is not safe for concurrent use; the inbound loop owns it.
type Framer struct {
	buf []byte
}

// NewFramer returns an empty Framer.
func NewFramer() *Framer {
	return &Framer{}
}

// Feed appends chunk to the buffer and returns every line it completes,
// in order. A line ends at LF; a CR right before it is dropped.
func (f *Framer) Feed(chunk []byte) []RawLine {
	f.buf = append(f.buf, chunk...)

	var lines []RawLine
	for {
		i := bytes.IndexByte(f.buf, '\n')
		if i < 0 {
			break
		}
		line := f.buf[:i]
		f.buf = f.buf[i+1:]
		line = bytes.TrimSuffix(line, []byte{'\r'})
		if len(line) == 0 {
			continue
		}
		lines = append(lines, decode(line))
	}

	if len(f.buf) > MaxBufferedBytes {
		lines = append(lines, decode(f.buf))
		f.buf = nil
	}

	// Drop the consumed prefix so the backing array does not grow forever.
	if len(f.buf) == 0 {
		f.buf = nil
	} else {
		f.buf = append([]byte(nil), f.buf...)
	}

	return lines
}

// Buffered returns the number of bytes waiting for a terminator.
func (f *Framer) Buffered() int {
	return len(f.buf)
}

// Reset discards the unterminated tail, as done at end of stream, and
// returns how many bytes were dropped.
func (f *Framer) Reset() int {
	n := len(f.buf)
	f.buf = nil
	return n
}

func decode(b []byte) RawLine {
	return RawLine(strings.ToValidUTF8(string(b), "�"))
}
