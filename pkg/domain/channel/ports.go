package channel

import "context"

// ---------------------------------------------------------------------------
// Ports: implemented by platform adapters, consumed by the core
// ---------------------------------------------------------------------------

// AuthPort provides the tenant access token. The core never inspects or
// caches the raw token.
type AuthPort interface {
	GetToken(ctx context.Context) (string, error)
	IsTokenExpired() bool
}

// MessageSender delivers outbound text. The recipient id prefix selects
// group, user or cross-app user addressing.
type MessageSender interface {
	SendText(ctx context.Context, recipientID, text string) error
}

// BotInfo resolves the bot's own identity. An empty id with a nil error means
// the platform returned no identity.
type BotInfo interface {
	GetBotOpenID(ctx context.Context) (string, error)
	HealthCheck(ctx context.Context) bool
}

// EventListener runs the inbound side until it terminates. Messages are
// handed to queue; listeners never block on a full queue.
type EventListener interface {
	Listen(ctx context.Context, queue chan<- InboundMessage) error
}

// Sink receives what a single connection produces.
type Sink interface {
	// Connected is called once the transport is up.
	Connected()
	// Deliver hands over one decoded message. It never blocks.
	Deliver(msg InboundMessage)
}

// Connector opens one inbound connection and serves it until it closes.
// A nil return means a graceful close; any error is a transient failure.
type Connector interface {
	Name() string
	Connect(ctx context.Context, sink Sink) error
}
