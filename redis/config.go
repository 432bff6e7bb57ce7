package redis

import (
	"time"

	"github.com/kbukum/floq/validation"
)

// Config holds Redis connection and stream configuration.
type Config struct {
	// Enabled controls whether the Redis component is active.
	Enabled bool `mapstructure:"enabled"`

	// Addr is the Redis server address (host:port).
	Addr string `mapstructure:"addr"`

	// Password is the Redis server password.
	Password string `mapstructure:"password"`

	// DB is the Redis database number.
	DB int `mapstructure:"db"`

	// PoolSize is the maximum number of socket connections.
	PoolSize int `mapstructure:"pool_size"`

	// MinIdleConns is the minimum number of idle connections.
	MinIdleConns int `mapstructure:"min_idle_conns"`

	// MaxRetries is the maximum number of command retries.
	MaxRetries int `mapstructure:"max_retries"`

	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// Stream configures the stream source and sink.
	Stream StreamConfig `mapstructure:"stream"`
}

// StreamConfig describes how a pipeline reads and writes Redis streams.
type StreamConfig struct {
	// Key is the stream the source reads.
	Key string `mapstructure:"key"`
	// Field holds the message text inside each entry.
	Field string `mapstructure:"field"`
	// StartID is the first ID read: "0" replays the stream, "$" only sees
	// new entries. Defaults to "$" when following, "0" otherwise.
	StartID string `mapstructure:"start_id"`
	// Follow keeps the source waiting for new entries. Without it the
	// source is exhausted once it reaches the end of the stream.
	Follow bool `mapstructure:"follow"`
	// Block is how long a single XREAD waits for new entries when following.
	Block time.Duration `mapstructure:"block"`
	// Count caps the entries fetched per XREAD.
	Count int64 `mapstructure:"count"`

	// OutputKey is the stream the sink appends to.
	OutputKey string `mapstructure:"output_key"`
	// MaxLen trims the output stream to roughly this many entries; 0 keeps all.
	MaxLen int64 `mapstructure:"max_len"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 10
	}
	if c.MinIdleConns <= 0 {
		c.MinIdleConns = 2
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 3 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 3 * time.Second
	}
	c.Stream.applyDefaults()
}

func (s *StreamConfig) applyDefaults() {
	if s.Field == "" {
		s.Field = "text"
	}
	if s.StartID == "" {
		s.StartID = "0"
		if s.Follow {
			s.StartID = "$"
		}
	}
	if s.Block <= 0 {
		s.Block = time.Second
	}
	if s.Count <= 0 {
		s.Count = 100
	}
}

// Validate checks that required fields are present. A disabled config is
// always valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	v := validation.New().
		Required("redis.addr", c.Addr).
		Min("redis.pool_size", c.PoolSize, 1).
		PositiveDuration("redis.dial_timeout", c.DialTimeout).
		Custom(c.Stream.MaxLen >= 0, "redis.stream.max_len", "must not be negative")
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}
