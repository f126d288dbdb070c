// Package kernel is the capability microkernel: it owns an ordered set of
// platform capabilities and the event bus they share, and drives their
// lifecycle.
//
// To add a capability:
//  1. Implement Capability (embed Base for the no-op defaults)
//  2. Register it with the kernel before StartAll
//  3. The kernel starts it in registration order and stops it in reverse
package kernel

import "context"

// Capability is an independently lifecycled platform feature such as auth,
// messaging, bot identity or event listening.
type Capability interface {
	// Name returns a stable, non-empty identifier.
	Name() string

	// Start performs initialisation. A non-nil error aborts kernel startup.
	Start(ctx context.Context) error

	// Stop releases resources. Errors are logged by the kernel and ignored.
	Stop(ctx context.Context) error

	// HealthCheck reports whether the capability is currently usable.
	HealthCheck(ctx context.Context) bool
}

// Base supplies the default lifecycle: start and stop succeed, health is
// always true. Embed it and override what the capability needs.
type Base struct{}

func (Base) Start(context.Context) error      { return nil }
func (Base) Stop(context.Context) error       { return nil }
func (Base) HealthCheck(context.Context) bool { return true }
