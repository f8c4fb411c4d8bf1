package stream

import (
	"bytes"
	"encoding/json"
	"strings"
)

// dataPrefix marks a line that carries a record.
const dataPrefix = "data: "

// record is the wire shape shared by all four record kinds.
type record struct {
	Type    string   `json:"type"`
	Model   string   `json:"model"`
	Content string   `json:"content"`
	Metrics *Metrics `json:"metrics,omitempty"`
}

// Parser turns arbitrarily split chunks of a stream into events. Complete
// lines are consumed as they arrive; the trailing fragment is kept until the
// chunk that terminates it. A Parser is not safe for concurrent use.
type Parser struct {
	buf []byte
}

// Feed appends chunk to the pending buffer and returns the events carried by
// every line the chunk completed, in stream order.
func (p *Parser) Feed(chunk []byte) []Event {
	p.buf = append(p.buf, chunk...)

	var events []Event
	start := 0
	for {
		idx := bytes.IndexByte(p.buf[start:], '\n')
		if idx < 0 {
			break
		}
		line := p.buf[start : start+idx]
		start += idx + 1
		if ev, ok := ParseLine(line); ok {
			events = append(events, ev)
		}
	}

	if start > 0 {
		// Keep only the unterminated fragment.
		n := copy(p.buf, p.buf[start:])
		p.buf = p.buf[:n]
	}
	return events
}

// Pending returns the number of buffered bytes not yet terminated by a newline.
func (p *Parser) Pending() int {
	return len(p.buf)
}

// Reset drops any buffered fragment.
func (p *Parser) Reset() {
	p.buf = p.buf[:0]
}

// ParseLine decodes one complete line. It reports false for blank lines,
// lines without the data prefix, malformed JSON, unknown record types and
// model-scoped records that name no model.
func ParseLine(line []byte) (Event, bool) {
	line = bytes.TrimSuffix(line, []byte{'\r'})
	text := string(bytes.ToValidUTF8(line, []byte("\uFFFD")))
	if !strings.HasPrefix(text, dataPrefix) {
		return nil, false
	}

	var rec record
	if err := json.Unmarshal([]byte(text[len(dataPrefix):]), &rec); err != nil {
		return nil, false
	}

	switch rec.Type {
	case "done":
		return Done{}, true
	case "partial":
		if rec.Model == "" {
			return nil, false
		}
		return Partial{Model: rec.Model, Content: rec.Content}, true
	case "complete":
		if rec.Model == "" {
			return nil, false
		}
		return Complete{Model: rec.Model, Content: rec.Content, Metrics: rec.Metrics}, true
	case "error":
		if rec.Model == "" {
			return nil, false
		}
		return Error{Model: rec.Model, Content: rec.Content}, true
	default:
		return nil, false
	}
}
