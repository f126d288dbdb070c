// Package app holds the channel application service and the composition
// root that wires it to the Lark platform adapters.
package app

import (
	"net"
	"strconv"

	larksdk "github.com/larksuite/oapi-sdk-go/v3"

	"github.com/sipeed/feishuclaw/pkg/bus"
	"github.com/sipeed/feishuclaw/pkg/config"
	"github.com/sipeed/feishuclaw/pkg/domain"
	"github.com/sipeed/feishuclaw/pkg/domain/channel"
	"github.com/sipeed/feishuclaw/pkg/domain/security"
	"github.com/sipeed/feishuclaw/pkg/kernel"
	"github.com/sipeed/feishuclaw/pkg/listener"
	"github.com/sipeed/feishuclaw/pkg/platform/lark"
)

// ---------------------------------------------------------------------------
// Application container: dependency injection root
// ---------------------------------------------------------------------------

// Container holds one fully wired Feishu channel and its parts.
type Container struct {
	Config   *config.Config
	Client   *larksdk.Client
	Bus      *bus.Bus
	Kernel   *kernel.Kernel
	Guard    *security.Guard
	Auth     *lark.Auth
	Sender   *lark.Sender
	Bot      *lark.BotInfo
	Listener *listener.Listener
	Channel  *ChannelService
}

// NewFeishuChannel builds the channel described by cfg. Capabilities are
// registered as auth, bot, im, event; nothing is started.
func NewFeishuChannel(cfg *config.Config) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	fc := cfg.Feishu

	client := lark.NewClient(lark.ClientConfig{
		AppID:     fc.AppID,
		AppSecret: fc.AppSecret,
		BaseURL:   fc.Domain.BaseURL(),
		LogLevel:  cfg.Log.Level,
	})
	eventBus := bus.New(bus.DefaultCapacity)

	auth := lark.NewAuth(lark.SelfBuiltTenantToken(client, fc.AppID, fc.AppSecret), eventBus)
	sender := lark.NewSender(lark.IMCreateMessage(client))
	bot := lark.NewBotInfo(lark.TenantGet(client), auth)

	connector, err := NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	events := listener.New(connector, eventBus, cfg.Listener)

	k := kernel.New(eventBus)
	k.Register(AuthCapability{Auth: auth})
	k.Register(BotCapability{Bot: bot})
	k.Register(IMCapability{Sender: sender})
	k.Register(events)

	guard := security.NewGuardWithConfig(cfg.GuardConfig())
	svc := NewChannelService(ServiceConfig{
		GroupRequiresMention: fc.GroupRequireMention,
		QueueSize:            cfg.Listener.QueueSize,
		DedupWindow:          cfg.Channel.DedupWindow,
	}, guard, k, sender, bot, events)

	return &Container{
		Config:   cfg,
		Client:   client,
		Bus:      eventBus,
		Kernel:   k,
		Guard:    guard,
		Auth:     auth,
		Sender:   sender,
		Bot:      bot,
		Listener: events,
		Channel:  svc,
	}, nil
}

// NewConnector selects the inbound transport for the configured mode.
func NewConnector(cfg *config.Config) (channel.Connector, error) {
	fc := cfg.Feishu
	events := lark.EventConfig{
		VerificationToken: fc.VerificationToken,
		EncryptKey:        fc.EncryptKey,
		StripMentions:     cfg.Channel.StripMentions,
	}
	switch fc.ConnectionMode {
	case config.ModeWebSocket:
		return &lark.WSConnector{
			AppID:     fc.AppID,
			AppSecret: fc.AppSecret,
			BaseURL:   fc.Domain.BaseURL(),
			Events:    events,
			LogLevel:  cfg.Log.Level,
		}, nil
	case config.ModeWebhook:
		return &lark.WebhookConnector{
			Addr:     net.JoinHostPort("0.0.0.0", strconv.Itoa(fc.WebhookPort)),
			Path:     fc.WebhookPath,
			Events:   events,
			LogLevel: cfg.Log.Level,
		}, nil
	default:
		return nil, domain.Errorf(domain.CodeInvalidConfig, "unknown connection mode %q", fc.ConnectionMode)
	}
}

// Close releases the event bus. Call after the kernel has been stopped.
func (c *Container) Close() {
	c.Bus.Close()
}
