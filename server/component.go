package server

import (
	"context"
	"fmt"

	"github.com/kbukum/floq/component"
)

const componentName = "status-server"

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// Component wraps Server for the component registry.
type Component struct {
	server *Server
}

// NewComponent returns a component backed by s.
func NewComponent(s *Server) *Component {
	return &Component{server: s}
}

// Server returns the wrapped server.
func (c *Component) Server() *Server { return c.server }

// Name returns the component name used for registration.
func (c *Component) Name() string { return componentName }

// Start starts the underlying HTTP server.
func (c *Component) Start(ctx context.Context) error {
	return c.server.Start(ctx)
}

// Stop gracefully shuts down the underlying HTTP server.
func (c *Component) Stop(ctx context.Context) error {
	return c.server.Stop(ctx)
}

// Health reports whether the server is serving.
func (c *Component) Health(context.Context) component.Health {
	if !c.server.Running() {
		return component.Health{Name: componentName, Status: component.StatusUnhealthy, Message: "not serving"}
	}
	return component.Health{Name: componentName, Status: component.StatusHealthy, Message: c.server.Addr()}
}

// Describe returns the startup summary line, including every route.
func (c *Component) Describe() component.Description {
	cfg := c.server.config
	routes := c.server.engine.Routes()
	details := fmt.Sprintf("%s:%d routes=%d", cfg.Host, cfg.Port, len(routes))
	for _, r := range routes {
		details += " " + r.Path
	}
	return component.Description{
		Name:    "Status Server",
		Type:    "server",
		Details: details,
		Port:    cfg.Port,
	}
}
