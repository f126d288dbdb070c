package bus

import (
	"time"

	"github.com/sipeed/feishuclaw/pkg/domain/channel"
)

// Event is the closed set of lifecycle signals carried by the bus. The
// unexported marker keeps the set sealed to this package.
type Event interface {
	Kind() string
	event()
}

// Event kinds as they appear on the wire (see Envelope).
const (
	KindMessageReceived        = "message.received"
	KindTokenRefreshed         = "auth.token_refreshed"
	KindConnectionStateChanged = "connection.state_changed"
)

// MessageReceived is published for every inbound message decoded by the listener.
type MessageReceived struct {
	Message channel.InboundMessage `json:"message"`
}

// TokenRefreshed is published when a new tenant token has been obtained.
type TokenRefreshed struct {
	ExpiresIn time.Duration `json:"expires_in"`
}

// ConnectionStateChanged is published on every transition of the inbound connection.
type ConnectionStateChanged struct {
	Connected bool `json:"connected"`
}

func (MessageReceived) Kind() string        { return KindMessageReceived }
func (TokenRefreshed) Kind() string         { return KindTokenRefreshed }
func (ConnectionStateChanged) Kind() string { return KindConnectionStateChanged }

func (MessageReceived) event()        {}
func (TokenRefreshed) event()         {}
func (ConnectionStateChanged) event() {}

// Envelope is the serialisable form of an event for observers outside the
// process (the monitor WebSocket).
type Envelope struct {
	Type string    `json:"type"`
	Time time.Time `json:"time"`
	Data Event     `json:"data"`
}

// Wrap stamps ev with its kind and the current time.
func Wrap(ev Event) Envelope {
	return Envelope{Type: ev.Kind(), Time: time.Now().UTC(), Data: ev}
}
