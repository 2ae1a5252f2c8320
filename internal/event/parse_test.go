package event

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domerrors "github.com/garyellow/line-webhook-bridge/internal/errors"
)

func TestParseCallback_Message(t *testing.T) {
	t.Parallel()

	body := []byte(`{"events":[{"type":"message","replyToken":"tok1","source":{"type":"user","userId":"U1"},"message":{"text":"hi"}}]}`)

	cb, err := ParseCallback(body)
	require.NoError(t, err)
	require.Len(t, cb.Events, 1)

	ev := cb.Events[0]
	assert.Equal(t, TypeMessage, ev.Type)
	assert.Equal(t, "tok1", ev.ReplyToken)
	assert.Equal(t, SourceUser, ev.Source.Type)
	assert.Equal(t, "U1", ev.Source.UserID)

	text, ok := ev.Message.TextContent()
	assert.True(t, ok)
	assert.Equal(t, "hi", text)
}

func TestParseCallback_FullDelivery(t *testing.T) {
	t.Parallel()

	body := []byte(`{
		"destination": "Ubot",
		"events": [
			{
				"type": "memberJoined",
				"mode": "active",
				"timestamp": 1700000000000,
				"replyToken": "tok2",
				"webhookEventId": "01HEVENT",
				"deliveryContext": {"isRedelivery": true},
				"source": {"type": "group", "groupId": "C1"},
				"joined": {"members": [{"type": "user", "userId": "U1"}, {"type": "user", "userId": "U2"}]}
			},
			{
				"type": "postback",
				"source": {"type": "room", "roomId": "R1", "userId": "U3"},
				"postback": {"data": "action=buy", "params": {"date": "2024-01-01"}}
			},
			{
				"type": "beacon",
				"source": {"type": "user", "userId": "U4"},
				"beacon": {"hwid": "d41d8cd98f", "type": "enter"}
			}
		]
	}`)

	cb, err := ParseCallback(body)
	require.NoError(t, err)
	assert.Equal(t, "Ubot", cb.Destination)
	require.Len(t, cb.Events, 3)

	joined := cb.Events[0]
	assert.Equal(t, TypeMemberJoined, joined.Type)
	assert.Equal(t, int64(1700000000000), joined.Timestamp)
	assert.Equal(t, "01HEVENT", joined.WebhookEventID)
	assert.True(t, joined.IsRedelivery())
	assert.Equal(t, 2, joined.Joined.Count())
	assert.Equal(t, "C1", joined.Source.ChatID())

	postback := cb.Events[1]
	assert.Equal(t, "action=buy", postback.Postback.Data)
	assert.Equal(t, "2024-01-01", postback.Postback.Params["date"])
	assert.Equal(t, "R1", postback.Source.ChatID())
	assert.Equal(t, "U3", postback.Source.UserID)
	assert.False(t, postback.IsRedelivery())

	assert.Equal(t, "enter", cb.Events[2].Beacon.Type)
}

func TestParseCallback_UnknownTypesDecode(t *testing.T) {
	t.Parallel()

	body := []byte(`{"events":[{"type":"videoPlayComplete","source":{"type":"channel","channelId":"X"}}]}`)

	cb, err := ParseCallback(body)
	require.NoError(t, err)
	require.Len(t, cb.Events, 1)
	assert.Equal(t, Type("videoPlayComplete"), cb.Events[0].Type)
	assert.Equal(t, "", cb.Events[0].Source.ChatID())
}

func TestParseCallback_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"truncated", `{"events":[`},
		{"not json", `hello`},
		{"wrong shape", `{"events":{"type":"message"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseCallback([]byte(tt.body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, domerrors.ErrDecode))
		})
	}
}

func TestValidateSignature(t *testing.T) {
	t.Parallel()

	secret := "channel-secret"
	body := []byte(`{"events":[]}`)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	assert.NoError(t, ValidateSignature(secret, signature, body))
	assert.ErrorIs(t, ValidateSignature(secret, "", body), domerrors.ErrInvalidSignature)
	assert.ErrorIs(t, ValidateSignature("other-secret", signature, body), domerrors.ErrInvalidSignature)
	assert.ErrorIs(t, ValidateSignature(secret, signature, []byte(`{"events":[{}]}`)), domerrors.ErrInvalidSignature)
}
