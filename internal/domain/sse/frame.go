package sse

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"
)

// DefaultMaxFrameBytes bounds the data of a single frame.
const DefaultMaxFrameBytes = 1 << 20

// lineSlack covers the field name and separators on top of maxBytes.
const lineSlack = 1024

// Frame is one dispatched server-sent event.
type Frame struct {
	ID    string
	Event string
	Data  string
	Retry time.Duration
	// Oversized is set when the data exceeded the reader limit and was dropped.
	Oversized bool
}

func (f Frame) empty() bool {
	return f.ID == "" && f.Event == "" && f.Data == "" && f.Retry == 0 && !f.Oversized
}

// FrameReader splits a text/event-stream body into frames.
type FrameReader struct {
	r        *bufio.Reader
	maxBytes int
}

func NewFrameReader(r io.Reader, maxBytes int) *FrameReader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFrameBytes
	}
	return &FrameReader{r: bufio.NewReader(r), maxBytes: maxBytes}
}

// Next blocks until a complete frame is available. A partial frame at EOF is discarded.
func (fr *FrameReader) Next() (Frame, error) {
	var (
		frame   Frame
		data    strings.Builder
		hasData bool
	)
	for {
		line, long, err := fr.readLine()
		if err != nil {
			return Frame{}, err
		}
		if long {
			frame.Oversized = true
			data.Reset()
			continue
		}

		if line == "" {
			if hasData && !frame.Oversized {
				frame.Data = data.String()
			}
			if frame.empty() {
				continue
			}
			return frame, nil
		}

		// comment / heartbeat
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			frame.Event = value
		case "data":
			if frame.Oversized {
				continue
			}
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
			if data.Len() > fr.maxBytes {
				frame.Oversized = true
				data.Reset()
			}
		case "id":
			if !strings.ContainsRune(value, 0) {
				frame.ID = value
			}
		case "retry":
			if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
				frame.Retry = time.Duration(ms) * time.Millisecond
			}
		}
	}
}

// readLine returns one line without its terminator. A line longer than
// maxBytes+lineSlack is consumed without being kept and reported as long.
func (fr *FrameReader) readLine() (line string, long bool, err error) {
	var buf []byte
	for {
		chunk, err := fr.r.ReadSlice('\n')
		if !long {
			if len(buf)+len(chunk) > fr.maxBytes+lineSlack {
				long = true
				buf = nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		switch {
		case err == nil:
			if long {
				return "", true, nil
			}
			line = strings.TrimSuffix(string(buf), "\n")
			return strings.TrimSuffix(line, "\r"), false, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		default:
			return "", long, err
		}
	}
}
