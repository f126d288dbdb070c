// Package codec converts between Feishu message payloads and plain text.
// Everything here is pure.
package codec

import (
	"encoding/json"
	"strings"
)

// Message types understood by the codec.
const (
	MsgTypeText = "text"
)

// Receive-id types accepted by the send API.
const (
	ReceiveIDOpenID  = "open_id"
	ReceiveIDChatID  = "chat_id"
	ReceiveIDUnionID = "union_id"
)

// Mention is one @-reference inside a message. Key is the placeholder that
// appears in the text (for example "@_user_1").
type Mention struct {
	Key    string
	OpenID string
	Name   string
}

// DecodeContent turns the raw content field into plain text. Text messages
// yield their "text" field; anything unparseable, and every other message
// type, is passed through unchanged.
func DecodeContent(raw, msgType string) string {
	if msgType != MsgTypeText {
		return raw
	}
	var body struct {
		Text *string `json:"text"`
	}
	if err := json.Unmarshal([]byte(raw), &body); err != nil || body.Text == nil {
		return raw
	}
	return *body.Text
}

// EncodeText builds the content field of a text message.
func EncodeText(text string) string {
	b, _ := json.Marshal(struct {
		Text string `json:"text"`
	}{Text: text})
	return string(b)
}

// ReceiveIDType infers the id type from the recipient prefix. Unknown
// prefixes are treated as user open_ids.
func ReceiveIDType(recipientID string) string {
	switch {
	case strings.HasPrefix(recipientID, "oc_"):
		return ReceiveIDChatID
	case strings.HasPrefix(recipientID, "on_"):
		return ReceiveIDUnionID
	default:
		return ReceiveIDOpenID
	}
}

// MentionIDs extracts the open_ids of mentions, skipping empty ones.
func MentionIDs(mentions []Mention) []string {
	var ids []string
	for _, m := range mentions {
		if m.OpenID != "" {
			ids = append(ids, m.OpenID)
		}
	}
	return ids
}

// IsMentioned reports whether openID is among mentions.
func IsMentioned(mentions []Mention, openID string) bool {
	if openID == "" {
		return false
	}
	for _, m := range mentions {
		if m.OpenID == openID {
			return true
		}
	}
	return false
}

// StripMentions removes mention placeholders and "@Name" forms from text.
func StripMentions(text string, mentions []Mention) string {
	for _, m := range mentions {
		if m.Key != "" {
			text = strings.ReplaceAll(text, m.Key, "")
		}
		if m.Name != "" {
			text = strings.ReplaceAll(text, "@"+m.Name, "")
		}
	}
	return strings.TrimSpace(text)
}
