package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkReader returns one chunk per Read, then err (io.EOF when nil).
type chunkReader struct {
	chunks []string
	err    error
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	if r.chunks[0] == "" {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func (r *chunkReader) Close() error { return nil }

func collect(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("stream never closed")
		}
	}
}

func TestConsumeEndsWithSingleDone(t *testing.T) {
	r := &chunkReader{chunks: []string{"잔여 연차는 ", "<leave_tri", "gger>{\"leaveType\":\"연차\"}</leave", "_trigger>", "11일입니다."}}
	events := collect(t, Consume(context.Background(), r))

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, EventDone, last.Kind)
	assert.Equal(t, "잔여 연차는 11일입니다.", last.Text)
	assert.Equal(t, last.Text, visibleText(events[:len(events)-1]))

	terminals := 0
	for _, ev := range events {
		if ev.Terminal() {
			terminals++
		}
	}
	assert.Equal(t, 1, terminals)
	assert.Len(t, triggers(events), 1)
}

func TestConsumeErrorCarriesPartialText(t *testing.T) {
	r := &chunkReader{chunks: []string{"부분 ", "응답<leave_trigger>{\"a\":"}, err: errors.New("connection reset")}
	events := collect(t, Consume(context.Background(), r))

	last := events[len(events)-1]
	assert.Equal(t, EventError, last.Kind)
	assert.EqualError(t, last.Err, "connection reset")
	assert.Equal(t, "부분 응답", last.Text)
	assert.Empty(t, triggers(events))
}

func TestDrainDispatchesCallbacksInOrder(t *testing.T) {
	r := &chunkReader{chunks: []string{
		"A<approval_trigger>{\"type\":\"expense\"}</approval_trigger>B",
		"<leave_trigger>{\"reason\":\"x\"}</leave_trigger>C",
	}}

	var order []string
	text, err := Drain(context.Background(), r, Handlers{
		OnText: func(s string) { order = append(order, "text:"+s) },
		OnLeaveTrigger: func(p json.RawMessage) {
			order = append(order, "leave:"+string(p))
		},
		OnApprovalTrigger: func(p json.RawMessage) {
			order = append(order, "approval:"+string(p))
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "ABC", text)
	assert.Equal(t, []string{
		"text:A",
		`approval:{"type":"expense"}`,
		"text:B",
		`leave:{"reason":"x"}`,
		"text:C",
	}, order)
}

func TestDrainReturnsStreamError(t *testing.T) {
	r := &chunkReader{chunks: []string{"half"}, err: io.ErrUnexpectedEOF}
	text, err := Drain(context.Background(), r, Handlers{})

	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, "half", text)
}

// blockingReader never returns until closed.
type blockingReader struct{ done chan struct{} }

func (b *blockingReader) Read([]byte) (int, error) {
	<-b.done
	return 0, io.ErrClosedPipe
}

func TestDrainStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &blockingReader{done: make(chan struct{})}

	errCh := make(chan error, 1)
	go func() {
		_, err := Drain(ctx, strings.NewReader(""), Handlers{})
		errCh <- err
	}()
	require.NoError(t, <-errCh)

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
		close(r.done)
	}()
	_, err := Drain(ctx, r, Handlers{})
	assert.Error(t, err)
}
