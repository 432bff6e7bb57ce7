package redis

import (
	"context"
	"fmt"
	"sync"

	"github.com/kbukum/floq/component"
	"github.com/kbukum/floq/logger"
)

// Component owns the Client and implements component.Component.
type Component struct {
	cfg    Config
	log    *logger.Logger
	mu     sync.Mutex
	client *Client
}

var _ component.Component = (*Component)(nil)

// NewComponent creates a Redis component for use with the component registry.
func NewComponent(cfg Config) *Component {
	cfg.ApplyDefaults()
	return &Component{
		cfg: cfg,
		log: logger.Get("redis").WithComponent("redis"),
	}
}

// Client returns the client, or nil before Start.
func (c *Component) Client() *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client
}

// Name returns the component name.
func (c *Component) Name() string { return "redis" }

// Start creates the client and verifies connectivity.
func (c *Component) Start(ctx context.Context) error {
	client, err := New(c.cfg)
	if err != nil {
		return err
	}
	if err := client.Ping(ctx); err != nil {
		_ = client.Close()
		return err
	}
	c.mu.Lock()
	c.client = client
	c.mu.Unlock()
	c.log.Info("redis component started")
	return nil
}

// Stop closes the Redis connection.
func (c *Component) Stop(_ context.Context) error {
	c.mu.Lock()
	client := c.client
	c.client = nil
	c.mu.Unlock()
	if client == nil {
		return nil
	}
	return client.Close()
}

// Health pings the server.
func (c *Component) Health(ctx context.Context) component.Health {
	client := c.Client()
	if client == nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "redis not initialized"}
	}
	if err := client.Ping(ctx); err != nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: fmt.Sprintf("ping failed: %v", err)}
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy}
}

// Describe returns the startup summary line.
func (c *Component) Describe() component.Description {
	details := fmt.Sprintf("%s db=%d pool=%d", c.cfg.Addr, c.cfg.DB, c.cfg.PoolSize)
	if c.cfg.Stream.Key != "" {
		details += " stream=" + c.cfg.Stream.Key
	}
	if c.cfg.Stream.OutputKey != "" {
		details += " output=" + c.cfg.Stream.OutputKey
	}
	return component.Description{Name: "Redis", Type: "redis", Details: details}
}
