package channel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseChatKind(t *testing.T) {
	tests := []struct {
		raw  string
		want ChatKind
	}{
		{"p2p", ChatDirect},
		{"group", ChatGroup},
		{"topic_group", ChatUnknown},
		{"", ChatUnknown},
		{"GROUP", ChatUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseChatKind(tt.raw))
		})
	}
	assert.Equal(t, "unknown", ChatUnknown.String())
}

func TestNewInboundMessageCopiesMentions(t *testing.T) {
	mentions := []string{"ou_bot", "ou_other"}
	msg := NewInboundMessage("om_1", "ou_a", "hi", "oc_1", time.UnixMilli(1700000000000), ChatGroup, mentions)

	mentions[0] = "ou_changed"
	assert.Equal(t, []string{"ou_bot", "ou_other"}, msg.Mentions)
	assert.True(t, msg.IsGroup())
	assert.True(t, msg.MentionsIdentity("ou_bot"))
	assert.False(t, msg.MentionsIdentity("ou_changed"))
	assert.False(t, msg.MentionsIdentity(""))
}

func TestNewInboundMessageNoMentions(t *testing.T) {
	msg := NewInboundMessage("om_1", "ou_a", "hi", "oc_1", time.Time{}, ChatDirect, nil)
	assert.Nil(t, msg.Mentions)
	assert.False(t, msg.IsGroup())
}
