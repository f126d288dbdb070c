package codec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeContent(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		msgType string
		want    string
	}{
		{"text", `{"text":"Hello world"}`, "text", "Hello world"},
		{"text keeps placeholders", `{"text":"@_user_1 Hello"}`, "text", "@_user_1 Hello"},
		{"invalid json", "not json", "text", "not json"},
		{"missing text field", `{"title":"x"}`, "text", `{"title":"x"}`},
		{"other type raw", `{"some":"data"}`, "post", `{"some":"data"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeContent(tt.raw, tt.msgType))
		})
	}
}

func TestEncodeText(t *testing.T) {
	var body map[string]string
	require.NoError(t, json.Unmarshal([]byte(EncodeText(`say "hi" <b>`)), &body))
	assert.Equal(t, `say "hi" <b>`, body["text"])
}

func TestReceiveIDType(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"oc_123", ReceiveIDChatID},
		{"on_123", ReceiveIDUnionID},
		{"ou_123", ReceiveIDOpenID},
		{"something", ReceiveIDOpenID},
		{"", ReceiveIDOpenID},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, ReceiveIDType(tt.id))
		})
	}
}

func TestMentions(t *testing.T) {
	mentions := []Mention{
		{Key: "@_user_1", OpenID: "ou_bot", Name: "MyBot"},
		{Key: "@_user_2", Name: "Ghost"},
	}
	assert.Equal(t, []string{"ou_bot"}, MentionIDs(mentions))
	assert.True(t, IsMentioned(mentions, "ou_bot"))
	assert.False(t, IsMentioned(mentions, "ou_other"))
	assert.False(t, IsMentioned(mentions, ""))
	assert.Nil(t, MentionIDs(nil))
}

func TestStripMentions(t *testing.T) {
	mentions := []Mention{{Key: "@_user_1", OpenID: "ou_bot", Name: "MyBot"}}
	assert.Equal(t, "Hello bot", StripMentions("@_user_1 Hello bot", mentions))
	assert.Equal(t, "hey", StripMentions("@MyBot hey", mentions))
	assert.Equal(t, "Hello", StripMentions(" Hello ", nil))
}
