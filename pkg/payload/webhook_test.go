package payload

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const inboundJSON = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "WABA",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "metadata": {"display_phone_number": "15550001111", "phone_number_id": "123"},
        "contacts": [{"wa_id": "5511987654321", "profile": {"name": "Maria"}}],
        "messages": [
          {"from": "5511987654321", "id": "wamid.text", "timestamp": "1700000000", "type": "text", "text": {"body": "oi"}, "context": {"from": "15550001111", "id": "wamid.prev"}},
          {"from": "5511987654321", "id": "wamid.voice", "timestamp": "1700000001", "type": "audio", "audio": {"id": "media-1", "mime_type": "audio/ogg; codecs=opus", "voice": true}},
          {"from": "5511987654321", "id": "wamid.loc", "timestamp": "1700000002", "type": "location", "location": {"latitude": -23.5, "longitude": -46.6, "name": "Sé"}},
          {"from": "5511987654321", "id": "wamid.react", "timestamp": "1700000003", "type": "reaction", "reaction": {"message_id": "wamid.text", "emoji": "👍"}},
          {"from": "5511987654321", "id": "wamid.btn", "timestamp": "1700000004", "type": "button", "button": {"text": "Sim"}},
          {"from": "5511987654321", "id": "wamid.img", "timestamp": "1700000005", "type": "image"}
        ]
      }
    }]
  }]
}`

func TestDecodeInboundVariants(t *testing.T) {
	var p WebhookPayload
	require.NoError(t, json.Unmarshal([]byte(inboundJSON), &p))

	v, ok := p.FirstValue()
	require.True(t, ok)
	require.Len(t, v.Messages, 6)

	text := v.Messages[0]
	assert.Equal(t, Text{Body: "oi"}, text.Content)
	assert.Equal(t, "oi", text.TextBody())
	assert.Equal(t, "wamid.prev", text.ReplyToID())
	ms, ok := text.UnixMillis()
	assert.True(t, ok)
	assert.Equal(t, int64(1_700_000_000_000), ms)

	voice, ok := v.Messages[1].Content.(Media)
	require.True(t, ok)
	assert.Equal(t, "audio", voice.Kind())
	assert.Equal(t, "media-1", voice.ID)
	assert.True(t, voice.Voice)
	assert.Empty(t, v.Messages[1].TextBody())

	loc, ok := v.Messages[2].Content.(Location)
	require.True(t, ok)
	assert.Equal(t, -23.5, loc.Latitude)
	assert.Equal(t, "Sé", loc.Name)

	assert.Equal(t, Reaction{MessageID: "wamid.text", Emoji: "👍"}, v.Messages[3].Content)
	assert.Equal(t, Unsupported{Type: "button"}, v.Messages[4].Content)
	assert.Equal(t, Unsupported{Type: "image"}, v.Messages[5].Content, "media type without its object")
	assert.Empty(t, v.Messages[4].ReplyToID())
}

func TestFirstValueMissing(t *testing.T) {
	for _, body := range []string{
		`{}`,
		`{"entry": []}`,
		`{"entry": [{"changes": []}]}`,
		`{"entry": [{"changes": [{"field": "messages"}]}]}`,
	} {
		var p WebhookPayload
		require.NoError(t, json.Unmarshal([]byte(body), &p))
		_, ok := p.FirstValue()
		assert.False(t, ok, body)
	}

	var nilPayload *WebhookPayload
	_, ok := nilPayload.FirstValue()
	assert.False(t, ok)
}

func TestContactFor(t *testing.T) {
	v := &Value{Contacts: []Contact{{WaID: "1"}, {WaID: "2"}}}
	assert.Equal(t, "2", v.ContactFor("2").WaID)
	assert.Equal(t, "1", v.ContactFor("3").WaID)
	assert.Nil(t, (&Value{}).ContactFor("1"))
}

func TestStatusMillis(t *testing.T) {
	ms, ok := Status{Timestamp: "1700000000"}.UnixMillis()
	assert.True(t, ok)
	assert.Equal(t, int64(1_700_000_000_000), ms)

	_, ok = Status{Timestamp: "soon"}.UnixMillis()
	assert.False(t, ok)
}
