package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sipeed/feishuclaw/pkg/domain"
	"github.com/sipeed/feishuclaw/pkg/domain/channel"
	"github.com/sipeed/feishuclaw/pkg/domain/security"
	"github.com/sipeed/feishuclaw/pkg/kernel"
	"github.com/sipeed/feishuclaw/pkg/logger"
)

// ---------------------------------------------------------------------------
// Channel application service
// ---------------------------------------------------------------------------

// ServiceConfig tunes the listen pipeline.
type ServiceConfig struct {
	GroupRequiresMention bool
	QueueSize            int
	DedupWindow          time.Duration
}

// ChannelService is the aggregate root of the Feishu channel: the single
// send / listen / health surface exposed to callers.
type ChannelService struct {
	cfg    ServiceConfig
	guard  *security.Guard
	kernel *kernel.Kernel
	sender channel.MessageSender
	bot    channel.BotInfo
	events channel.EventListener
}

// NewChannelService wires the service from explicitly constructed parts.
func NewChannelService(
	cfg ServiceConfig,
	guard *security.Guard,
	k *kernel.Kernel,
	sender channel.MessageSender,
	bot channel.BotInfo,
	events channel.EventListener,
) *ChannelService {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	return &ChannelService{
		cfg:    cfg,
		guard:  guard,
		kernel: k,
		sender: sender,
		bot:    bot,
		events: events,
	}
}

func (s *ChannelService) Name() string { return domain.ChannelName }

func (s *ChannelService) Guard() *security.Guard { return s.guard }

func (s *ChannelService) Kernel() *kernel.Kernel { return s.kernel }

// Start starts every capability in registration order.
func (s *ChannelService) Start(ctx context.Context) error {
	return s.kernel.StartAll(ctx)
}

// Stop stops every capability in reverse order.
func (s *ChannelService) Stop(ctx context.Context) {
	s.kernel.StopAll(ctx)
}

// Send delivers text to recipientID. Failures are returned as-is.
func (s *ChannelService) Send(ctx context.Context, recipientID, text string) error {
	return s.sender.SendText(ctx, recipientID, text)
}

// Listen runs the inbound pipeline until the listener returns, forwarding
// messages that pass the filter to out in arrival order. The listener's
// result is returned; the filter is cancelled when it exits.
func (s *ChannelService) Listen(ctx context.Context, out chan<- channel.InboundMessage) error {
	logger.InfoC("channel", "Starting listener")

	botOpenID, err := s.bot.GetBotOpenID(ctx)
	if err != nil {
		logger.WarnCF("channel", "Could not resolve bot open_id, mention gating disabled", map[string]interface{}{
			"error": err.Error(),
		})
		botOpenID = ""
	}

	params := FilterParams{
		Guard:                s.guard,
		BotOpenID:            botOpenID,
		GroupRequiresMention: s.cfg.GroupRequiresMention,
	}
	internal := make(chan channel.InboundMessage, s.cfg.QueueSize)

	filterCtx, cancelFilter := context.WithCancel(ctx)
	defer cancelFilter()

	var g errgroup.Group
	g.Go(func() error {
		s.runFilter(filterCtx, internal, out, params)
		return nil
	})

	result := s.events.Listen(ctx, internal)
	cancelFilter()
	g.Wait()

	logger.InfoCF("channel", "Listener stopped", map[string]interface{}{
		"error": errString(result),
	})
	return result
}

func (s *ChannelService) runFilter(ctx context.Context, in <-chan channel.InboundMessage, out chan<- channel.InboundMessage, params FilterParams) {
	seen := newDedup(s.cfg.DedupWindow)
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-in:
			if seen.Seen(msg.ID) {
				logger.DebugCF("filter", "Dropped duplicate message", map[string]interface{}{
					"message_id": msg.ID,
				})
				continue
			}
			if !params.ShouldForward(msg) {
				continue
			}
			// An in-flight message still goes out if the caller has room.
			select {
			case out <- msg:
				continue
			default:
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

// HealthCheck aggregates capability health and logs the unhealthy ones.
func (s *ChannelService) HealthCheck(ctx context.Context) bool {
	report := s.kernel.HealthCheckAll(ctx)
	healthy := kernel.AllHealthy(report)
	if !healthy {
		for _, h := range report {
			if !h.Healthy {
				logger.WarnCF("channel", "Capability unhealthy", map[string]interface{}{
					"capability": h.Name,
				})
			}
		}
	}
	return healthy
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
