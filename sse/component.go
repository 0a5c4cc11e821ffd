package sse

import (
	"context"
	"strconv"
	"sync"

	"github.com/kbukum/agentflow/component"
	"github.com/kbukum/agentflow/observability"
)

// Component runs a Hub as a lifecycle-managed component. Register it after
// the HTTP server so it stops first and open streams end before shutdown.
type Component struct {
	hub     *Hub
	path    string
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// NewComponent creates a component with a fresh Hub served at path.
func NewComponent(path string) *Component {
	return &Component{hub: NewHub(), path: path}
}

// Hub returns the underlying hub.
func (c *Component) Hub() *Hub { return c.hub }

// Name implements component.Component.
func (c *Component) Name() string { return "sse" }

// Start launches the hub loop.
func (c *Component) Start(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}
	c.running = true
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.hub.Run()
	}()
	return nil
}

// Stop closes every stream and waits for the hub loop to return.
func (c *Component) Stop(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hub.Stop()
	c.wg.Wait()
	c.running = false
	return nil
}

// Health reports the number of connected clients.
func (c *Component) Health(_ context.Context) observability.Health {
	c.mu.Lock()
	running := c.running
	c.mu.Unlock()
	if !running {
		return observability.Health{Name: c.Name(), Status: observability.HealthStatusDown, Message: "not running"}
	}
	return observability.Health{
		Name:    c.Name(),
		Status:  observability.HealthStatusUp,
		Details: map[string]string{"clients": strconv.Itoa(c.hub.ClientCount())},
	}
}

// Describe implements component.Describable.
func (c *Component) Describe() component.Description {
	return component.Description{
		Name:    "Run events",
		Type:    "sse",
		Details: c.path,
	}
}
