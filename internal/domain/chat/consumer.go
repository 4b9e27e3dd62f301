package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

const readChunkSize = 4096

// Consume reads one assistant response and returns its ordered events. The
// channel carries Text and trigger events in stream order and is closed
// right after exactly one Done or Error. If ctx ends and nobody is reading,
// the terminal event may be dropped.
func Consume(ctx context.Context, r io.Reader) <-chan Event {
	out := make(chan Event, 16)
	go func() {
		defer close(out)

		var (
			split   Splitter
			visible strings.Builder
		)
		emit := func(events []Event) bool {
			for _, ev := range events {
				if ev.Kind == EventText {
					visible.WriteString(ev.Text)
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return false
				}
			}
			return true
		}
		fail := func(err error) {
			emit(split.Abort())
			select {
			case out <- Event{Kind: EventError, Text: visible.String(), Err: err}:
			case <-ctx.Done():
			}
		}

		buf := make([]byte, readChunkSize)
		for {
			n, err := r.Read(buf)
			if n > 0 && !emit(split.Feed(buf[:n])) {
				fail(ctx.Err())
				return
			}
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				fail(err)
				return
			}
			if ctx.Err() != nil {
				fail(ctx.Err())
				return
			}
		}

		if !emit(split.Flush()) {
			fail(ctx.Err())
			return
		}
		select {
		case out <- Event{Kind: EventDone, Text: visible.String()}:
		case <-ctx.Done():
		}
	}()
	return out
}

// Handlers receive Drain callbacks synchronously, in stream order. Nil
// handlers are skipped.
type Handlers struct {
	OnText            func(text string)
	OnLeaveTrigger    func(payload json.RawMessage)
	OnApprovalTrigger func(payload json.RawMessage)
}

// Drain consumes r to the end and returns the visible text. On failure the
// error is returned together with the partial visible text.
func Drain(ctx context.Context, r io.Reader, h Handlers) (string, error) {
	var partial strings.Builder
	for ev := range Consume(ctx, r) {
		switch ev.Kind {
		case EventText:
			partial.WriteString(ev.Text)
			if h.OnText != nil {
				h.OnText(ev.Text)
			}
		case EventLeaveTrigger:
			if h.OnLeaveTrigger != nil {
				h.OnLeaveTrigger(ev.Payload)
			}
		case EventApprovalTrigger:
			if h.OnApprovalTrigger != nil {
				h.OnApprovalTrigger(ev.Payload)
			}
		case EventDone:
			return ev.Text, nil
		case EventError:
			return ev.Text, ev.Err
		}
	}
	// closed without a terminal event: ctx ended
	err := ctx.Err()
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return partial.String(), err
}
