package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Envelope is one delivered push-notification record. Delivery is
// at-least-once, so the same EventID may arrive more than once.
type Envelope struct {
	Event       string     `json:"event"`
	EventID     FlexString `json:"event_id"`
	UserID      FlexString `json:"user_id"`
	QueueName   string     `json:"queue_name"`
	SentAt      FlexString `json:"sent_at"`
	Payload     any        `json:"payload"`
	PayloadText string     `json:"payload_text"`
}

// FlexString accepts a JSON string, number or null.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string { return string(f) }

// ParseEnvelope decodes one frame body. fallbackEvent is used when the body
// carries no event tag (the SSE "event:" field).
func ParseEnvelope(data []byte, fallbackEvent string) (Envelope, error) {
	var env Envelope
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return env, ErrMalformedEnvelope
	}
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return env, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	env.Event = strings.TrimSpace(env.Event)
	if env.Event == "" {
		env.Event = strings.TrimSpace(fallbackEvent)
	}
	if env.Event == "" {
		return env, fmt.Errorf("%w: missing event tag", ErrMalformedEnvelope)
	}
	return env, nil
}

// PayloadMap returns the payload as an object, or nil when it is anything else.
func (e Envelope) PayloadMap() map[string]any {
	m, _ := e.Payload.(map[string]any)
	return m
}

// FirstString returns the first non-empty, trimmed string value among keys.
func FirstString(m map[string]any, keys ...string) string {
	if m == nil {
		return ""
	}
	for _, k := range keys {
		if s, ok := m[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

// FirstScalar is FirstString that also renders numbers and booleans, for ids
// that upstream sends either way.
func FirstScalar(m map[string]any, keys ...string) string {
	if m == nil {
		return ""
	}
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case json.Number:
			return v.String()
		case bool:
			return strconv.FormatBool(v)
		}
	}
	return ""
}
