package bluesky

import (
	"net/url"
	"strconv"

	"github.com/kbukum/floq/sources/websocket"
)

// DefaultURL is the public relay's repository event stream.
const DefaultURL = "wss://bsky.network/xrpc/com.atproto.sync.subscribeRepos"

// Config configures the firehose connection.
type Config struct {
	websocket.Config `yaml:",inline" mapstructure:",squash"`
	// Cursor resumes from a sequence number; 0 starts at the live tail.
	Cursor int64 `yaml:"cursor" mapstructure:"cursor"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.URL == "" {
		c.URL = DefaultURL
	}
	c.Config.ApplyDefaults()
}

func (c Config) streamURL() string {
	if c.Cursor <= 0 {
		return c.URL
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return c.URL
	}
	q := u.Query()
	q.Set("cursor", strconv.FormatInt(c.Cursor, 10))
	u.RawQuery = q.Encode()
	return u.String()
}
