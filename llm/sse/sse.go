// ABOUTME: Server-Sent Events (SSE) wire parser for streaming chat completion responses.
// ABOUTME: Reads from an io.Reader and yields events, with helpers for the OpenAI-style "[DONE]" sentinel.

package sse

import (
	"bufio"
	"io"
	"strings"
)

// doneSentinel is the literal payload OpenAI-style streams send as their final
// data event.
const doneSentinel = "[DONE]"

// Event is a single Server-Sent Event parsed from a stream.
type Event struct {
	Type string // from "event:" line, defaults to "message"
	Data string // from "data:" line(s), joined with newlines for multi-line
	ID   string // from "id:" line
}

// Done reports whether the event carries the "[DONE]" terminator payload.
func (e Event) Done() bool {
	return strings.TrimSpace(e.Data) == doneSentinel
}

// Parser reads SSE events from an io.Reader. It handles LF, CRLF, and bare CR
// line endings, multi-line data fields, and comment lines.
type Parser struct {
	r    *bufio.Reader
	done bool

	eventType string
	data      []string
	id        string
}

// NewParser creates an SSE parser reading from r.
func NewParser(r io.Reader) *Parser {
	return &Parser{r: bufio.NewReaderSize(r, 4096)}
}

// Next returns the next event from the stream, or io.EOF when it ends.
// A read error from the underlying reader is returned as-is; callers should
// treat anything other than io.EOF as a stream failure rather than a clean end.
func (p *Parser) Next() (Event, error) {
	if p.done {
		return Event{}, io.EOF
	}

	for {
		line, err := p.readLine()
		if err != nil {
			if err == io.EOF {
				p.done = true
				// Dispatch a trailing event that was never terminated by a
				// blank line. Some providers end the stream this way.
				if p.data != nil {
					return p.dispatch(), nil
				}
				return Event{}, io.EOF
			}
			return Event{}, err
		}

		switch {
		case line == "":
			// Blank line ends the current event. Consecutive blank lines
			// produce nothing.
			if p.data == nil {
				continue
			}
			return p.dispatch(), nil

		case strings.HasPrefix(line, ":"):
			// Comment / keep-alive line.
			continue

		default:
			p.field(line)
		}
	}
}

// field consumes one "name: value" line into the pending event.
func (p *Parser) field(line string) {
	name := line
	value := ""
	if i := strings.IndexByte(line, ':'); i >= 0 {
		name = line[:i]
		value = strings.TrimPrefix(line[i+1:], " ")
	}

	switch name {
	case "event":
		p.eventType = value
	case "data":
		p.data = append(p.data, value)
	case "id":
		p.id = value
	default:
		// Unknown fields (retry, vendor extensions) are ignored.
	}
}

// dispatch builds the pending event and resets accumulation state.
func (p *Parser) dispatch() Event {
	evt := Event{
		Type: p.eventType,
		Data: strings.Join(p.data, "\n"),
		ID:   p.id,
	}
	if evt.Type == "" {
		evt.Type = "message"
	}
	p.eventType = ""
	p.data = nil
	p.id = ""
	return evt
}

// readLine reads one line, stripping the terminator. CR, LF, and CRLF all
// terminate a line; bufio.Scanner only understands the latter two, so lines
// are assembled byte by byte.
func (p *Parser) readLine() (string, error) {
	var b strings.Builder
	for {
		c, err := p.r.ReadByte()
		if err != nil {
			if err == io.EOF && b.Len() > 0 {
				return b.String(), nil
			}
			return "", err
		}

		switch c {
		case '\n':
			return b.String(), nil
		case '\r':
			if next, err := p.r.ReadByte(); err == nil && next != '\n' {
				_ = p.r.UnreadByte()
			}
			return b.String(), nil
		default:
			b.WriteByte(c)
		}
	}
}
