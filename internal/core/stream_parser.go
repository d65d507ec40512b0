package core

import (
	"bytes"
	"encoding/json"
)

const (
	// DefaultMaxBufferBytes bounds the carried-over tail of a stream.
	DefaultMaxBufferBytes = 16 << 20
	// MaxMalformedFeeds is how many feeds in a row the same complete
	// line may fail to parse before the stream is given up.
	MaxMalformedFeeds = 3
)

var lineSeparator = []byte{'\n'}

// StreamParser splits a chunked byte stream into newline-delimited
// JSON values. The tail after the last separator is carried into the
// next Feed. A complete line that does not parse is treated as the
// start of an unfinished value: it and everything after it stay
// buffered. A parser belongs to one connection.
type StreamParser struct {
	buf []byte
	max int

	// the line that last failed to parse and in how many feeds
	malformed      []byte
	malformedFeeds int
}

// NewStreamParser returns a parser whose buffer may not exceed max
// bytes. max <= 0 selects DefaultMaxBufferBytes.
func NewStreamParser(max int) *StreamParser {
	if max <= 0 {
		max = DefaultMaxBufferBytes
	}
	return &StreamParser{max: max}
}

// Feed appends chunk and returns every well-formed line completed by
// it, in stream order. Each returned slice is owned by the caller.
// ErrBufferOverflow and ErrMalformedLine are returned together with
// the lines that were completed before the stream was given up.
func (p *StreamParser) Feed(chunk []byte) ([]json.RawMessage, error) {
	data := append(p.buf, chunk...)

	lines := bytes.Split(data, lineSeparator)
	complete, tail := lines[:len(lines)-1], lines[len(lines)-1]

	var out []json.RawMessage
	for i, line := range complete {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			rest := bytes.Join(complete[i:], lineSeparator)
			p.buf = append(append(rest, '\n'), tail...)
			if p.failed(line) {
				return out, ErrMalformedLine
			}
			return out, p.checkLimit()
		}
		out = append(out, bytes.Clone(line))
	}

	p.malformed, p.malformedFeeds = nil, 0
	p.buf = bytes.Clone(tail)
	return out, p.checkLimit()
}

// failed records a parse failure of line and reports whether it has
// now failed in MaxMalformedFeeds feeds in a row.
func (p *StreamParser) failed(line []byte) bool {
	if p.malformedFeeds > 0 && bytes.Equal(line, p.malformed) {
		p.malformedFeeds++
	} else {
		p.malformed = bytes.Clone(line)
		p.malformedFeeds = 1
	}
	return p.malformedFeeds >= MaxMalformedFeeds
}

// Buffered returns the number of bytes carried into the next Feed.
func (p *StreamParser) Buffered() int {
	return len(p.buf)
}

// Reset drops any carried-over bytes.
func (p *StreamParser) Reset() {
	p.buf = nil
	p.malformed, p.malformedFeeds = nil, 0
}

func (p *StreamParser) checkLimit() error {
	if len(p.buf) > p.max {
		return ErrBufferOverflow
	}
	return nil
}
