package app

import (
	"context"
	"fmt"

	"github.com/sipeed/feishuclaw/pkg/domain/channel"
	"github.com/sipeed/feishuclaw/pkg/kernel"
)

// Capability wrappers let port adapters take part in the kernel lifecycle
// without depending on the kernel themselves.

// AuthCapability starts by fetching a token and stays healthy while it can.
type AuthCapability struct {
	kernel.Base
	Auth channel.AuthPort
}

func (c AuthCapability) Name() string { return "auth" }

func (c AuthCapability) Start(ctx context.Context) error {
	if _, err := c.Auth.GetToken(ctx); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	return nil
}

func (c AuthCapability) HealthCheck(ctx context.Context) bool {
	_, err := c.Auth.GetToken(ctx)
	return err == nil
}

// BotCapability starts by resolving the bot identity.
type BotCapability struct {
	kernel.Base
	Bot channel.BotInfo
}

func (c BotCapability) Name() string { return "bot" }

func (c BotCapability) Start(ctx context.Context) error {
	if _, err := c.Bot.GetBotOpenID(ctx); err != nil {
		return fmt.Errorf("bot: %w", err)
	}
	return nil
}

func (c BotCapability) HealthCheck(ctx context.Context) bool { return c.Bot.HealthCheck(ctx) }

// IMCapability wraps the stateless sender; it is healthy whenever auth is.
type IMCapability struct {
	kernel.Base
	Sender channel.MessageSender
}

func (c IMCapability) Name() string { return "im" }
