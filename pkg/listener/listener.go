// Package listener keeps the inbound event connection alive. It drives a
// channel.Connector through bounded reconnection with exponential backoff,
// publishes connection state on the bus and hands decoded messages to a
// bounded queue.
package listener

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/sipeed/feishuclaw/pkg/bus"
	"github.com/sipeed/feishuclaw/pkg/domain"
	"github.com/sipeed/feishuclaw/pkg/domain/channel"
	"github.com/sipeed/feishuclaw/pkg/logger"
)

// Name is the capability name of the listener.
const Name = "event"

// Config bounds the reconnect loop.
type Config struct {
	MaxAttempts        int           `yaml:"max_reconnect_attempts" env:"MAX_RECONNECT_ATTEMPTS" validate:"min=1"`
	BaseDelay          time.Duration `yaml:"reconnect_base_delay" env:"RECONNECT_BASE_DELAY" validate:"min=0"`
	MaxBackoffExponent int           `yaml:"max_backoff_exponent" env:"MAX_BACKOFF_EXPONENT" validate:"min=0,max=16"`
	QueueSize          int           `yaml:"queue_size" env:"QUEUE_SIZE" validate:"min=1"`
	ShutdownGrace      time.Duration `yaml:"shutdown_grace" env:"SHUTDOWN_GRACE" validate:"min=0"`
}

// DefaultConfig returns 10 attempts, a 2s base delay and an exponent cap of 5.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:        10,
		BaseDelay:          2 * time.Second,
		MaxBackoffExponent: 5,
		QueueSize:          256,
		ShutdownGrace:      5 * time.Second,
	}
}

// BackoffDelay is the sleep before the given 1-based attempt:
// zero for the first, base * 2^min(attempt-2, maxExp) afterwards.
func (c Config) BackoffDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	exp := attempt - 2
	if exp > c.MaxBackoffExponent {
		exp = c.MaxBackoffExponent
	}
	return c.BaseDelay * time.Duration(1<<uint(exp))
}

// Listener is the "event" capability. One Listen call may be active at a time.
type Listener struct {
	cfg  Config
	conn channel.Connector
	bus  *bus.Bus

	mu     sync.Mutex
	status domain.ConnectionStatus
	cancel context.CancelFunc
}

// New creates a listener. A non-positive MaxAttempts falls back to the default.
func New(conn channel.Connector, eventBus *bus.Bus, cfg Config) *Listener {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	return &Listener{
		cfg:    cfg,
		conn:   conn,
		bus:    eventBus,
		status: domain.StatusIdle,
	}
}

func (l *Listener) Name() string { return Name }

// Start has nothing to do; the connection is opened by Listen.
func (l *Listener) Start(context.Context) error { return nil }

// Stop cancels the active Listen call, if any.
func (l *Listener) Stop(context.Context) error {
	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// HealthCheck is false only after the reconnect budget was exhausted.
func (l *Listener) HealthCheck(context.Context) bool {
	return l.Status() != domain.StatusTerminated
}

// Status returns the current connection state.
func (l *Listener) Status() domain.ConnectionStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

func (l *Listener) setStatus(s domain.ConnectionStatus) {
	l.mu.Lock()
	l.status = s
	l.mu.Unlock()
}

// Listen connects and keeps reconnecting until the connector closes
// gracefully, ctx is cancelled (both return nil) or the attempt budget runs
// out (ErrReconnectExhausted). Decoded messages are pushed to queue without
// blocking; a full queue drops the message.
func (l *Listener) Listen(ctx context.Context, queue chan<- channel.InboundMessage) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	l.mu.Lock()
	if l.status.Active() {
		l.mu.Unlock()
		return domain.Errorf(domain.CodeConnectFailed, "listener already active")
	}
	l.status = domain.StatusConnecting
	l.cancel = cancel
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.cancel = nil
		l.mu.Unlock()
	}()

	l.publish(bus.ConnectionStateChanged{Connected: false})

	var attempt int
	err := retry.Do(
		func() error {
			attempt++
			return l.attempt(ctx, attempt, queue)
		},
		retry.Context(ctx),
		retry.Attempts(uint(l.cfg.MaxAttempts)),
		retry.LastErrorOnly(true),
		// Delays follow the attempt counter above, not retry's own n.
		retry.DelayType(func(uint, error, *retry.Config) time.Duration {
			return l.cfg.BackoffDelay(attempt + 1)
		}),
		retry.OnRetry(func(_ uint, err error) {
			if attempt >= l.cfg.MaxAttempts {
				return
			}
			logger.WarnCF("listener", "Reconnecting", map[string]interface{}{
				"attempt": fmt.Sprintf("%d/%d", attempt+1, l.cfg.MaxAttempts),
				"delay":   l.cfg.BackoffDelay(attempt + 1).String(),
				"error":   err.Error(),
			})
		}),
	)

	switch {
	case ctx.Err() != nil && !isPanic(err):
		l.setStatus(domain.StatusIdle)
		logger.InfoC("listener", "Listener cancelled")
		return nil
	case err == nil:
		l.setStatus(domain.StatusIdle)
		logger.InfoC("listener", "Connection closed normally")
		return nil
	case isPanic(err):
		l.setStatus(domain.StatusTerminated)
		return domain.NewError(domain.CodeConnectFailed, l.conn.Name(), err)
	default:
		l.setStatus(domain.StatusTerminated)
		logger.ErrorCF("listener", "Exceeded max reconnect attempts", map[string]interface{}{
			"attempts": l.cfg.MaxAttempts,
			"error":    err.Error(),
		})
		return domain.NewError(domain.CodeReconnectExhausted, fmt.Sprintf("%d attempts", l.cfg.MaxAttempts), err)
	}
}

// attempt runs one connection on an isolated worker and maps its outcome
// for the retry loop.
func (l *Listener) attempt(ctx context.Context, n int, queue chan<- channel.InboundMessage) error {
	l.setStatus(domain.StatusConnecting)
	logger.InfoCF("listener", "Connecting", map[string]interface{}{
		"connector": l.conn.Name(),
		"attempt":   n,
	})

	sink := &queueSink{l: l, queue: queue}
	err := runIsolated(ctx, l.cfg.ShutdownGrace, func(ctx context.Context) error {
		return l.conn.Connect(ctx, sink)
	})
	sink.retire()

	l.setStatus(domain.StatusDisconnected)
	if sink.connected.Load() {
		l.publish(bus.ConnectionStateChanged{Connected: false})
	}

	var pe *PanicError
	switch {
	case errors.As(err, &pe):
		logger.ErrorCF("listener", "Connection worker panicked", map[string]interface{}{
			"panic": fmt.Sprint(pe.Value),
			"stack": string(pe.Stack),
		})
		return retry.Unrecoverable(err)
	case ctx.Err() != nil:
		return retry.Unrecoverable(ctx.Err())
	case err == nil:
		return nil
	default:
		logger.WarnCF("listener", "Connection error", map[string]interface{}{
			"attempt": n,
			"error":   err.Error(),
		})
		return domain.NewError(domain.CodeDisconnected, l.conn.Name(), err)
	}
}

func (l *Listener) publish(ev bus.Event) {
	if l.bus != nil {
		l.bus.Publish(ev)
	}
}

func isPanic(err error) bool {
	var pe *PanicError
	return errors.As(err, &pe)
}

// queueSink is the per-attempt channel.Sink. After retire it ignores late
// calls from a worker that outlived its attempt.
type queueSink struct {
	l         *Listener
	queue     chan<- channel.InboundMessage
	connected atomic.Bool
	retired   atomic.Bool
}

func (s *queueSink) Connected() {
	if s.retired.Load() || s.connected.Swap(true) {
		return
	}
	s.l.setStatus(domain.StatusConnected)
	s.l.publish(bus.ConnectionStateChanged{Connected: true})
	logger.InfoCF("listener", "Connected", map[string]interface{}{
		"connector": s.l.conn.Name(),
	})
}

func (s *queueSink) Deliver(msg channel.InboundMessage) {
	if s.retired.Load() {
		return
	}
	select {
	case s.queue <- msg:
		s.l.publish(bus.MessageReceived{Message: msg})
	default:
		logger.ErrorCF("listener", "Inbound queue full, dropping message", map[string]interface{}{
			"message_id": msg.ID,
			"chat_id":    msg.ChatID,
		})
	}
}

func (s *queueSink) retire() { s.retired.Store(true) }
