package kafka

import (
	"time"

	"github.com/kbukum/floq/validation"
)

// Config holds Kafka connection settings for the source and the sink.
type Config struct {
	// Enabled controls whether the Kafka component is registered.
	Enabled bool `mapstructure:"enabled"`

	// Brokers is the list of Kafka broker addresses.
	Brokers []string `mapstructure:"brokers"`

	// Topic is read by the source and written by the sink.
	Topic string `mapstructure:"topic"`

	// GroupID enables consumer-group reads with offset commits.
	// Without it the source reads partition 0 from the first offset.
	GroupID string `mapstructure:"group_id"`

	// TLS
	EnableTLS     bool   `mapstructure:"enable_tls"`
	TLSSkipVerify bool   `mapstructure:"tls_skip_verify"`
	TLSCAFile     string `mapstructure:"tls_ca_file"`
	TLSCertFile   string `mapstructure:"tls_cert_file"`
	TLSKeyFile    string `mapstructure:"tls_key_file"`

	// SASL
	EnableSASL    bool   `mapstructure:"enable_sasl"`
	SASLMechanism string `mapstructure:"sasl_mechanism"` // PLAIN, SCRAM-SHA-256, SCRAM-SHA-512
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`

	// Writer settings
	Compression  string        `mapstructure:"compression"` // none, gzip, snappy, lz4, zstd
	BatchSize    int           `mapstructure:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	RequiredAcks int           `mapstructure:"required_acks"`

	// Reader settings
	MaxBytes          int           `mapstructure:"max_bytes"`
	SessionTimeout    time.Duration `mapstructure:"session_timeout"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	// MaxReadFailures is how many consecutive retryable read errors the
	// source rides out before failing the run.
	MaxReadFailures int `mapstructure:"max_read_failures"`

	// Connection settings
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	MetadataTTL time.Duration `mapstructure:"metadata_ttl"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if len(c.Brokers) == 0 {
		c.Brokers = []string{"localhost:9092"}
	}
	if c.Compression == "" {
		c.Compression = "snappy"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 1
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = 50 * time.Millisecond
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.RequiredAcks == 0 {
		c.RequiredAcks = -1 // all replicas
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10e6
	}
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = 30 * time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 3 * time.Second
	}
	if c.MaxReadFailures <= 0 {
		c.MaxReadFailures = 5
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 30 * time.Second
	}
	if c.MetadataTTL <= 0 {
		c.MetadataTTL = 6 * time.Second
	}
	if c.SASLMechanism == "" && c.EnableSASL {
		c.SASLMechanism = "PLAIN"
	}
}

// Validate checks that required fields are present. A disabled config is
// always valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	v := validation.New().
		Custom(len(c.Brokers) > 0, "kafka.brokers", "at least one broker is required").
		Required("kafka.topic", c.Topic).
		Min("kafka.batch_size", c.BatchSize, 1).
		PositiveDuration("kafka.write_timeout", c.WriteTimeout).
		PositiveDuration("kafka.dial_timeout", c.DialTimeout)
	if c.EnableSASL {
		v.OneOf("kafka.sasl_mechanism", c.SASLMechanism, []string{"PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512"}).
			Required("kafka.username", c.Username)
	}
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}
