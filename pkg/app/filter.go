package app

import (
	"github.com/sipeed/feishuclaw/pkg/domain/channel"
	"github.com/sipeed/feishuclaw/pkg/domain/security"
	"github.com/sipeed/feishuclaw/pkg/logger"
)

// FilterParams carries what the filter needs for one listen session.
// BotOpenID is empty when the bot identity could not be resolved, which
// disables mention gating.
type FilterParams struct {
	Guard                *security.Guard
	BotOpenID            string
	GroupRequiresMention bool
}

// ShouldForward decides whether msg reaches the caller. Drops are logged,
// never returned as errors.
func (p FilterParams) ShouldForward(msg channel.InboundMessage) bool {
	if msg.IsGroup() {
		if !p.Guard.IsGroupAllowed(msg.Sender) {
			logger.WarnCF("filter", "Dropped group message from unauthorized sender", map[string]interface{}{
				"sender":  msg.Sender,
				"chat_id": msg.ChatID,
			})
			return false
		}
		if p.GroupRequiresMention && p.BotOpenID != "" && !msg.MentionsIdentity(p.BotOpenID) {
			logger.DebugCF("filter", "Dropped group message without bot mention", map[string]interface{}{
				"sender":  msg.Sender,
				"chat_id": msg.ChatID,
			})
			return false
		}
		return true
	}

	if !p.Guard.IsDMAllowed(msg.Sender) {
		logger.WarnCF("filter", "Dropped direct message from unauthorized sender", map[string]interface{}{
			"sender":    msg.Sender,
			"chat_kind": msg.ChatKind.String(),
		})
		return false
	}
	return true
}
