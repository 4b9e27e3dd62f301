package chat

import (
	"bytes"
	"encoding/json"
	"unicode/utf8"
)

// Triggers are embedded in the token stream as
//
//	<leave_trigger>{...}</leave_trigger>
//	<approval_trigger>{...}</approval_trigger>
//
// and tags may be cut anywhere by chunking.
type triggerTag struct {
	kind  EventKind
	open  []byte
	close []byte
}

var triggerTags = []triggerTag{
	{kind: EventLeaveTrigger, open: []byte("<leave_trigger>"), close: []byte("</leave_trigger>")},
	{kind: EventApprovalTrigger, open: []byte("<approval_trigger>"), close: []byte("</approval_trigger>")},
}

// Splitter separates visible text from trigger bodies incrementally. It holds
// back bytes that may start a tag and incomplete UTF-8 sequences, so Text
// events are always safe to show. It is not safe for concurrent use.
type Splitter struct {
	buf []byte
	in  *triggerTag
}

// Feed consumes one chunk and returns the events it completes.
func (s *Splitter) Feed(chunk []byte) []Event {
	s.buf = append(s.buf, chunk...)

	var out []Event
	for {
		if s.in != nil {
			end := bytes.Index(s.buf, s.in.close)
			if end < 0 {
				return out
			}
			out = append(out, Event{Kind: s.in.kind, Payload: payload(s.buf[:end])})
			s.buf = s.buf[end+len(s.in.close):]
			s.in = nil
			continue
		}

		start, tag := nextOpenTag(s.buf)
		if tag != nil {
			out = appendText(out, s.buf[:start])
			s.buf = s.buf[start+len(tag.open):]
			s.in = tag
			continue
		}

		keep := holdBack(s.buf)
		out = appendText(out, s.buf[:len(s.buf)-keep])
		s.buf = append(s.buf[:0], s.buf[len(s.buf)-keep:]...)
		return out
	}
}

// Flush ends the stream. Held-back bytes become text, and an unterminated
// trigger is released as text together with its opening tag.
func (s *Splitter) Flush() []Event {
	var rest []byte
	if s.in != nil {
		rest = append(append(rest, s.in.open...), s.buf...)
	} else {
		rest = s.buf
	}
	out := appendText(nil, rest)
	s.reset()
	return out
}

// Abort ends a failed stream. Held-back text is released, a partial trigger is dropped.
func (s *Splitter) Abort() []Event {
	var out []Event
	if s.in == nil {
		out = appendText(nil, s.buf)
	}
	s.reset()
	return out
}

func (s *Splitter) reset() {
	s.buf = nil
	s.in = nil
}

func nextOpenTag(b []byte) (int, *triggerTag) {
	best, idx := -1, -1
	for i := range triggerTags {
		if at := bytes.Index(b, triggerTags[i].open); at >= 0 && (best < 0 || at < best) {
			best, idx = at, i
		}
	}
	if idx < 0 {
		return -1, nil
	}
	return best, &triggerTags[idx]
}

// holdBack returns how many trailing bytes must wait for the next chunk.
func holdBack(b []byte) int {
	keep := 0
	for i := range triggerTags {
		open := triggerTags[i].open
		for n := min(len(open)-1, len(b)); n > keep; n-- {
			if bytes.HasPrefix(open, b[len(b)-n:]) {
				keep = n
				break
			}
		}
	}
	if partial := partialRune(b); partial > keep {
		keep = partial
	}
	return keep
}

// partialRune is the length of an incomplete UTF-8 sequence at the end of b.
func partialRune(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if !utf8.FullRune(b[i:]) {
				return len(b) - i
			}
			return 0
		}
	}
	return 0
}

func appendText(out []Event, b []byte) []Event {
	if len(b) == 0 {
		return out
	}
	return append(out, Event{Kind: EventText, Text: string(b)})
}

func payload(b []byte) json.RawMessage {
	return append(json.RawMessage(nil), bytes.TrimSpace(b)...)
}
