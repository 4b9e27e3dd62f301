package notification

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvelope(t *testing.T) {
	data := []byte(`{"event":"gift","event_id":123,"user_id":"u1","queue_name":"gift.birthday","sent_at":"2025-03-01T09:00:00Z","payload":{"gift_name":"커피"},"payload_text":"선물"}`)

	env, err := ParseEnvelope(data, "")
	require.NoError(t, err)
	assert.Equal(t, "gift", env.Event)
	assert.Equal(t, "123", env.EventID.String())
	assert.Equal(t, "u1", env.UserID.String())
	assert.Equal(t, "gift.birthday", env.QueueName)
	assert.Equal(t, "커피", env.PayloadMap()["gift_name"])
}

func TestParseEnvelopeUsesFrameEvent(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"payload":"hi"}`), "birthday")
	require.NoError(t, err)
	assert.Equal(t, "birthday", env.Event)
	assert.Nil(t, env.PayloadMap())
}

func TestParseEnvelopeRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "not json", `{"event":`, `{"payload":{}}`, `{"event":"x","user_id":{}}`} {
		_, err := ParseEnvelope([]byte(raw), "")
		assert.True(t, errors.Is(err, ErrMalformedEnvelope), raw)
	}
}

func TestFirstScalar(t *testing.T) {
	m := map[string]any{"a": "", "b": 1001.0, "c": "x"}
	assert.Equal(t, "1001", FirstScalar(m, "a", "b", "c"))
	assert.Equal(t, "x", FirstScalar(m, "c", "b"))
	assert.Equal(t, "", FirstScalar(nil, "a"))
}
