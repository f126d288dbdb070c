// Event bridge: forwards every bus event to the WebSocket hub.
package api

import (
	"context"

	"github.com/sipeed/feishuclaw/pkg/bus"
	"github.com/sipeed/feishuclaw/pkg/logger"
)

// maxContentPreview bounds message text pushed to monitor clients.
const maxContentPreview = 200

// EventBridge connects the event bus to the WebSocket hub.
type EventBridge struct {
	bus *bus.Bus
	hub *WSHub
}

// NewEventBridge creates a bridge that forwards bus events to WebSocket clients.
func NewEventBridge(eb *bus.Bus, hub *WSHub) *EventBridge {
	return &EventBridge{bus: eb, hub: hub}
}

// Run forwards events until ctx is cancelled or the bus is closed.
func (eb *EventBridge) Run(ctx context.Context) {
	sub := eb.bus.Subscribe("monitor")
	defer sub.Close()

	logger.InfoC("events", "Event bridge started")
	for {
		select {
		case <-ctx.Done():
			logger.InfoC("events", "Event bridge stopped")
			return
		case ev, ok := <-sub.C():
			if !ok {
				return
			}
			eb.hub.Publish(bus.Wrap(preview(ev)))
		}
	}
}

// preview shortens message content. Other events pass unchanged.
func preview(ev bus.Event) bus.Event {
	mr, ok := ev.(bus.MessageReceived)
	if !ok {
		return ev
	}
	mr.Message.Content = truncate(mr.Message.Content, maxContentPreview)
	return mr
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "…"
}
