package kafka

import (
	"context"
	"fmt"
	"strings"
	"sync"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/floq/component"
	"github.com/kbukum/floq/errors"
	"github.com/kbukum/floq/logger"
	"github.com/kbukum/floq/resilience"
)

// brokerConn is the part of *kafkago.Conn used for health checks.
type brokerConn interface {
	Brokers() ([]kafkago.Broker, error)
	Close() error
}

// Component checks broker reachability at startup and on health probes.
type Component struct {
	cfg   Config
	log   *logger.Logger
	retry resilience.RetryConfig
	dial  func(ctx context.Context, addr string) (brokerConn, error)

	mu      sync.Mutex
	running bool
}

var _ component.Component = (*Component)(nil)

// NewComponent creates a Kafka component for use with the component registry.
func NewComponent(cfg Config) *Component {
	cfg.ApplyDefaults()
	c := &Component{
		cfg:   cfg,
		log:   logger.Get("kafka").WithComponent("kafka"),
		retry: resilience.DefaultRetryConfig(),
	}
	c.dial = func(ctx context.Context, addr string) (brokerConn, error) {
		dialer, err := newDialer(&c.cfg)
		if err != nil {
			return nil, err
		}
		return dialer.DialContext(ctx, "tcp", addr)
	}
	return c
}

// Name returns the component name.
func (c *Component) Name() string { return "kafka" }

// Start verifies that the first broker answers a metadata request,
// retrying connection failures.
func (c *Component) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}
	if err := c.cfg.Validate(); err != nil {
		return err
	}
	if err := resilience.RetryFunc(ctx, c.retry, func() error { return c.ping(ctx) }); err != nil {
		return errors.ConnectionFailed("kafka").WithCause(err)
	}
	c.running = true
	c.log.Info("kafka component started", logger.Fields("brokers", c.cfg.Brokers, "topic", c.cfg.Topic))
	return nil
}

// Stop marks the component stopped; sources and sinks close their own
// readers and writers when their task ends.
func (c *Component) Stop(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	return nil
}

func (c *Component) ping(ctx context.Context) error {
	conn, err := c.dial(ctx, c.cfg.Brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = conn.Brokers()
	return err
}

// Health dials the first broker and asks for cluster metadata.
func (c *Component) Health(ctx context.Context) component.Health {
	c.mu.Lock()
	running := c.running
	c.mu.Unlock()

	if !running {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "kafka not started"}
	}
	conn, err := c.dial(ctx, c.cfg.Brokers[0])
	if err != nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: fmt.Sprintf("broker unreachable: %v", err)}
	}
	defer conn.Close()
	if _, err := conn.Brokers(); err != nil {
		return component.Health{Name: c.Name(), Status: component.StatusDegraded, Message: fmt.Sprintf("broker metadata: %v", err)}
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy}
}

// Describe returns the startup summary line.
func (c *Component) Describe() component.Description {
	details := fmt.Sprintf("brokers=%s topic=%s", strings.Join(c.cfg.Brokers, ","), c.cfg.Topic)
	if c.cfg.GroupID != "" {
		details += " group=" + c.cfg.GroupID
	}
	return component.Description{Name: "Kafka", Type: "kafka", Details: details}
}
