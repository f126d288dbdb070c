package lark

import (
	"context"
	"strconv"
	"time"

	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"

	"github.com/sipeed/feishuclaw/pkg/codec"
	"github.com/sipeed/feishuclaw/pkg/domain"
	"github.com/sipeed/feishuclaw/pkg/domain/channel"
	"github.com/sipeed/feishuclaw/pkg/logger"
)

// EventConfig configures event verification and decoding.
type EventConfig struct {
	VerificationToken string
	EncryptKey        string
	StripMentions     bool
}

// NewDispatcher routes im.message.receive_v1 events to sink.
func NewDispatcher(cfg EventConfig, sink channel.Sink) *dispatcher.EventDispatcher {
	return dispatcher.NewEventDispatcher(cfg.VerificationToken, cfg.EncryptKey).
		OnP2MessageReceiveV1(func(_ context.Context, event *larkim.P2MessageReceiveV1) error {
			msg, err := DecodeMessageEvent(event, cfg.StripMentions)
			if err != nil {
				logger.WarnCF("events", "Skipping undecodable event", map[string]interface{}{
					"error": err.Error(),
				})
				return nil
			}
			sink.Deliver(msg)
			return nil
		})
}

// DecodeMessageEvent maps a receive event to an InboundMessage. Content is
// decoded best-effort: undecodable content is passed through raw.
func DecodeMessageEvent(event *larkim.P2MessageReceiveV1, stripMentions bool) (channel.InboundMessage, error) {
	if event == nil || event.Event == nil || event.Event.Message == nil {
		return channel.InboundMessage{}, domain.Errorf(domain.CodeDecodeFailed, "event without message")
	}
	m := event.Event.Message

	var sender string
	if s := event.Event.Sender; s != nil && s.SenderId != nil {
		sender = str(s.SenderId.OpenId)
	}

	mentions := make([]codec.Mention, 0, len(m.Mentions))
	for _, mention := range m.Mentions {
		if mention == nil {
			continue
		}
		cm := codec.Mention{Key: str(mention.Key), Name: str(mention.Name)}
		if mention.Id != nil {
			cm.OpenID = str(mention.Id.OpenId)
		}
		mentions = append(mentions, cm)
	}

	content := codec.DecodeContent(str(m.Content), str(m.MessageType))
	if stripMentions {
		content = codec.StripMentions(content, mentions)
	}

	var ts time.Time
	if ms, err := strconv.ParseInt(str(m.CreateTime), 10, 64); err == nil {
		ts = time.UnixMilli(ms)
	}

	return channel.NewInboundMessage(
		str(m.MessageId),
		sender,
		content,
		str(m.ChatId),
		ts,
		channel.ParseChatKind(str(m.ChatType)),
		codec.MentionIDs(mentions),
	), nil
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
