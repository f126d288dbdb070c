package kernel

import (
	"context"
	"sync"

	"github.com/sipeed/feishuclaw/pkg/bus"
	"github.com/sipeed/feishuclaw/pkg/domain"
	"github.com/sipeed/feishuclaw/pkg/logger"
)

// Health is the outcome of one capability's health check.
type Health struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
}

// AllHealthy is the logical AND over a health report. An empty report is healthy.
func AllHealthy(report []Health) bool {
	for _, h := range report {
		if !h.Healthy {
			return false
		}
	}
	return true
}

// Kernel holds capabilities in registration order. Registration must finish
// before the first lifecycle call; the kernel does not enforce unique names.
type Kernel struct {
	caps []Capability
	bus  *bus.Bus
	mu   sync.RWMutex
}

// New creates a kernel around an existing bus. A nil bus gets a fresh one.
func New(eventBus *bus.Bus) *Kernel {
	if eventBus == nil {
		eventBus = bus.New(bus.DefaultCapacity)
	}
	return &Kernel{bus: eventBus}
}

// Bus returns the event bus shared by every capability.
func (k *Kernel) Bus() *bus.Bus { return k.bus }

// Register appends c to the lifecycle order.
func (k *Kernel) Register(c Capability) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.caps = append(k.caps, c)
	logger.DebugCF("kernel", "Registered capability", map[string]interface{}{
		"name":     c.Name(),
		"position": len(k.caps),
	})
}

// Len returns the number of registered capabilities.
func (k *Kernel) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.caps)
}

// Names lists capability names in registration order.
func (k *Kernel) Names() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	names := make([]string, 0, len(k.caps))
	for _, c := range k.caps {
		names = append(names, c.Name())
	}
	return names
}

// Get returns the first capability registered under name.
func (k *Kernel) Get(name string) (Capability, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	for _, c := range k.caps {
		if c.Name() == name {
			return c, nil
		}
	}
	return nil, domain.NewError(domain.CodeCapabilityNotFound, name, nil)
}

// StartAll starts capabilities in registration order and stops at the first
// failure. Capabilities after the failing one are not started and the ones
// before it are left running; the returned error names the failing one.
func (k *Kernel) StartAll(ctx context.Context) error {
	k.mu.RLock()
	defer k.mu.RUnlock()
	for _, c := range k.caps {
		if err := c.Start(ctx); err != nil {
			logger.ErrorCF("kernel", "Failed to start capability", map[string]interface{}{
				"name":  c.Name(),
				"error": err.Error(),
			})
			return domain.NewError(domain.CodeCapabilityStart, c.Name(), err)
		}
		logger.InfoCF("kernel", "Started capability", map[string]interface{}{
			"name": c.Name(),
		})
	}
	return nil
}

// StopAll stops every capability in reverse registration order. A failing
// Stop is logged and the sweep continues.
func (k *Kernel) StopAll(ctx context.Context) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	for i := len(k.caps) - 1; i >= 0; i-- {
		c := k.caps[i]
		if err := c.Stop(ctx); err != nil {
			logger.ErrorCF("kernel", "Failed to stop capability", map[string]interface{}{
				"name":  c.Name(),
				"error": err.Error(),
			})
			continue
		}
		logger.DebugCF("kernel", "Stopped capability", map[string]interface{}{
			"name": c.Name(),
		})
	}
}

// HealthCheckAll checks every capability in registration order without
// short-circuiting.
func (k *Kernel) HealthCheckAll(ctx context.Context) []Health {
	k.mu.RLock()
	defer k.mu.RUnlock()
	report := make([]Health, 0, len(k.caps))
	for _, c := range k.caps {
		report = append(report, Health{Name: c.Name(), Healthy: c.HealthCheck(ctx)})
	}
	return report
}
