// Package channel defines the messaging context of the Feishu adapter: the
// inbound message value object and the ports implemented by platform adapters.
package channel

import "time"

// ---------------------------------------------------------------------------
// Chat kind
// ---------------------------------------------------------------------------

// ChatKind is the conversation context a message was posted in.
type ChatKind string

const (
	ChatDirect  ChatKind = "p2p"
	ChatGroup   ChatKind = "group"
	ChatUnknown ChatKind = ""
)

// ParseChatKind maps the platform chat_type field. Anything other than the
// two known values is ChatUnknown.
func ParseChatKind(raw string) ChatKind {
	switch raw {
	case string(ChatDirect):
		return ChatDirect
	case string(ChatGroup):
		return ChatGroup
	default:
		return ChatUnknown
	}
}

func (k ChatKind) String() string {
	if k == ChatUnknown {
		return "unknown"
	}
	return string(k)
}

// ---------------------------------------------------------------------------
// Inbound message value object
// ---------------------------------------------------------------------------

// InboundMessage is a message received from the platform. It is a value
// object: construct it with NewInboundMessage and never modify it afterwards.
type InboundMessage struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	ChatID    string    `json:"chat_id"`
	Timestamp time.Time `json:"timestamp"`
	ChatKind  ChatKind  `json:"chat_kind"`
	Mentions  []string  `json:"mentions,omitempty"`
}

// NewInboundMessage creates an inbound message. The mentions slice is copied.
func NewInboundMessage(id, sender, content, chatID string, ts time.Time, kind ChatKind, mentions []string) InboundMessage {
	var m []string
	if len(mentions) > 0 {
		m = make([]string, len(mentions))
		copy(m, mentions)
	}
	return InboundMessage{
		ID:        id,
		Sender:    sender,
		Content:   content,
		ChatID:    chatID,
		Timestamp: ts,
		ChatKind:  kind,
		Mentions:  m,
	}
}

// IsGroup reports whether the message was posted in a group chat.
func (m InboundMessage) IsGroup() bool { return m.ChatKind == ChatGroup }

// MentionsIdentity reports whether identity is among the mentioned identities.
func (m InboundMessage) MentionsIdentity(identity string) bool {
	if identity == "" {
		return false
	}
	for _, id := range m.Mentions {
		if id == identity {
			return true
		}
	}
	return false
}
