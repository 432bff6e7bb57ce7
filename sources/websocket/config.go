package websocket

import (
	"net/url"
	"time"

	"github.com/kbukum/floq/validation"
)

// Config configures a websocket connection.
type Config struct {
	URL string `yaml:"url" mapstructure:"url"`
	// Origin is sent in the handshake; x/net/websocket requires one.
	Origin  string            `yaml:"origin" mapstructure:"origin"`
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`
	// Reconnect makes a dropped connection redial instead of ending the stream.
	Reconnect bool `yaml:"reconnect" mapstructure:"reconnect"`
	// MaxReconnects is how many consecutive failed dials fail the source.
	MaxReconnects int           `yaml:"max_reconnects" mapstructure:"max_reconnects"`
	DialTimeout   time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	// Buffer is how many frames may be read ahead of the pipeline.
	Buffer int `yaml:"buffer" mapstructure:"buffer"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Origin == "" {
		c.Origin = "http://localhost/"
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = 5
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.Buffer == 0 {
		c.Buffer = 64
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	u, err := url.Parse(c.URL)
	v := validation.New().
		Required("websocket.url", c.URL).
		Custom(c.URL == "" || (err == nil && (u.Scheme == "ws" || u.Scheme == "wss")), "websocket.url", "must be a ws:// or wss:// URL").
		Min("websocket.max_reconnects", c.MaxReconnects, 1).
		PositiveDuration("websocket.dial_timeout", c.DialTimeout).
		Min("websocket.buffer", c.Buffer, 1)
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}
