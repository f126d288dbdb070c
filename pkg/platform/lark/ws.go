package lark

import (
	"context"
	"fmt"
	"strings"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"

	"github.com/sipeed/feishuclaw/pkg/domain"
	"github.com/sipeed/feishuclaw/pkg/domain/channel"
)

// WSConnector is the primary inbound transport: the platform's long-lived
// WebSocket event stream. Every Connect builds a fresh SDK client with
// auto-reconnect disabled so that reconnection stays with the listener.
//
// The SDK client's Start never returns once connected, so connection state
// is observed through its log lines. A client whose Connect has returned is
// abandoned; the listener's attempt budget bounds how many can pile up.
type WSConnector struct {
	AppID     string
	AppSecret string
	BaseURL   string
	Events    EventConfig
	LogLevel  string
}

func (c *WSConnector) Name() string { return "websocket" }

// Connect returns when the stream disconnects (error), the initial
// handshake fails (error) or ctx is cancelled (nil).
func (c *WSConnector) Connect(ctx context.Context, sink channel.Sink) error {
	state := make(chan bool, 8)
	level := SDKLogLevel(c.LogLevel)
	if level > larkcore.LogLevelInfo {
		level = larkcore.LogLevelInfo
	}

	cli := larkws.NewClient(c.AppID, c.AppSecret,
		larkws.WithEventHandler(NewDispatcher(c.Events, sink)),
		larkws.WithDomain(c.BaseURL),
		larkws.WithAutoReconnect(false),
		larkws.WithLogger(wsStateLogger{Logger: NewSDKLogger("lark-ws"), state: state}),
		larkws.WithLogLevel(level),
	)

	started := make(chan error, 1)
	go func() { started <- cli.Start(ctx) }()

	for {
		select {
		case err := <-started:
			if err == nil {
				return domain.NewError(domain.CodeDisconnected, c.Name(), nil)
			}
			return domain.NewError(domain.CodeConnectFailed, c.Name(), err)
		case up := <-state:
			if !up {
				return domain.NewError(domain.CodeDisconnected, c.Name(), nil)
			}
			sink.Connected()
		case <-ctx.Done():
			return nil
		}
	}
}

// wsStateLogger forwards SDK logs and reports connect/disconnect lines.
type wsStateLogger struct {
	larkcore.Logger
	state chan<- bool
}

func (l wsStateLogger) Info(ctx context.Context, args ...interface{}) {
	l.Logger.Info(ctx, args...)
	msg := fmt.Sprint(args...)
	switch {
	case strings.Contains(msg, "disconnected"):
		l.signal(false)
	case strings.Contains(msg, "connected to"):
		l.signal(true)
	}
}

func (l wsStateLogger) signal(up bool) {
	select {
	case l.state <- up:
	default:
	}
}
