package mastodon

import (
	"fmt"
	"net/url"

	"github.com/kbukum/floq/sources/websocket"
	"github.com/kbukum/floq/validation"
)

// Config configures the streaming connection. URL, when set, is used as
// the streaming endpoint as is; otherwise it is derived from Server.
type Config struct {
	websocket.Config `yaml:",inline" mapstructure:",squash"`
	Server           string `yaml:"server" mapstructure:"server"`
	// StreamingHost defaults to "streaming." followed by the server host.
	StreamingHost string `yaml:"streaming_host" mapstructure:"streaming_host"`
	AccessToken   string `yaml:"access_token" mapstructure:"access_token"`
	// Stream is the timeline: public, public:local, hashtag, user.
	Stream string `yaml:"stream" mapstructure:"stream"`
	// Tag selects the hashtag for the hashtag streams.
	Tag string `yaml:"tag" mapstructure:"tag"`
}

var streams = []string{"public", "public:local", "public:remote", "hashtag", "hashtag:local", "user"}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Server == "" {
		c.Server = "https://mastodon.social"
	}
	if c.Stream == "" {
		c.Stream = "public"
	}
	c.Config.ApplyDefaults()
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	hashtag := c.Stream == "hashtag" || c.Stream == "hashtag:local"
	v := validation.New().
		Required("mastodon.server", c.Server).
		OneOf("mastodon.stream", c.Stream, streams).
		Custom(!hashtag || c.Tag != "", "mastodon.tag", "is required for hashtag streams").
		Custom(c.Stream != "user" || c.AccessToken != "", "mastodon.access_token", "is required for the user stream")
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

// StreamingURL returns the websocket endpoint for the configured timeline.
func (c Config) StreamingURL() (string, error) {
	base := c.URL
	if base == "" {
		u, err := url.Parse(c.Server)
		if err != nil || u.Host == "" {
			return "", fmt.Errorf("mastodon server %q: not an absolute URL", c.Server)
		}
		scheme := "ws"
		if u.Scheme == "https" {
			scheme = "wss"
		}
		host := c.StreamingHost
		if host == "" {
			host = "streaming." + u.Host
		}
		base = (&url.URL{Scheme: scheme, Host: host, Path: "/api/v1/streaming"}).String()
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("mastodon streaming url: %w", err)
	}
	q := u.Query()
	q.Set("stream", c.Stream)
	if c.Tag != "" {
		q.Set("tag", c.Tag)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
