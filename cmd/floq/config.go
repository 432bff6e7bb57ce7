package main

import (
	"time"

	"github.com/kbukum/floq/config"
	"github.com/kbukum/floq/kafka"
	"github.com/kbukum/floq/logger"
	"github.com/kbukum/floq/observability"
	"github.com/kbukum/floq/redis"
	"github.com/kbukum/floq/server"
	"github.com/kbukum/floq/sources/bluesky"
	"github.com/kbukum/floq/sources/mastodon"
	"github.com/kbukum/floq/sources/websocket"
	"github.com/kbukum/floq/stream"
	"github.com/kbukum/floq/util"
	"github.com/kbukum/floq/validation"
	"github.com/kbukum/floq/version"
)

// Source kinds.
const (
	SourceFile      = "file"
	SourceWebsocket = "websocket"
	SourceBluesky   = "bluesky"
	SourceMastodon  = "mastodon"
	SourceKafka     = "kafka"
	SourceRedis     = "redis"
)

// Sink kinds. redis appends to a stream, redis-key keeps only the latest
// result under one key.
const (
	SinkPrinter  = "printer"
	SinkFile     = "file"
	SinkSSE      = "sse"
	SinkRedis    = "redis"
	SinkRedisKey = "redis-key"
	SinkKafka    = "kafka"
)

// Window kinds.
const (
	WindowTumbling = "tumbling"
	WindowSliding  = "sliding"
	WindowCounting = "counting"
)

// Reduce modes.
const (
	ReducePerWindow = "window"
	ReduceRunning   = "running"
)

var (
	sourceKinds = []string{SourceFile, SourceWebsocket, SourceBluesky, SourceMastodon, SourceKafka, SourceRedis}
	sinkKinds   = []string{SinkPrinter, SinkFile, SinkSSE, SinkRedis, SinkRedisKey, SinkKafka}
	windowKinds = []string{WindowTumbling, WindowSliding, WindowCounting}
	reduceModes = []string{ReducePerWindow, ReduceRunning}
)

// AppConfig is the floq command configuration.
type AppConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Source    SourceConfig    `yaml:"source" mapstructure:"source"`
	Filter    FilterConfig    `yaml:"filter" mapstructure:"filter"`
	Window    WindowConfig    `yaml:"window" mapstructure:"window"`
	Reduce    ReduceConfig    `yaml:"reduce" mapstructure:"reduce"`
	Sink      SinkConfig      `yaml:"sink" mapstructure:"sink"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Kafka     kafka.Config    `yaml:"kafka" mapstructure:"kafka"`
	Redis     redis.Config    `yaml:"redis" mapstructure:"redis"`
	Server    server.Config   `yaml:"server" mapstructure:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`
}

// SourceConfig selects and configures where messages come from.
type SourceConfig struct {
	Kind      string           `yaml:"kind" mapstructure:"kind"`
	File      FileSourceConfig `yaml:"file" mapstructure:"file"`
	Websocket websocket.Config `yaml:"websocket" mapstructure:"websocket"`
	Bluesky   bluesky.Config   `yaml:"bluesky" mapstructure:"bluesky"`
	Mastodon  mastodon.Config  `yaml:"mastodon" mapstructure:"mastodon"`
	// RateLimit drops messages above this many per second; 0 keeps all.
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	Burst     int     `yaml:"burst" mapstructure:"burst"`
}

// FileSourceConfig reads a text file line by line.
type FileSourceConfig struct {
	Path      string `yaml:"path" mapstructure:"path"`
	SkipEmpty bool   `yaml:"skip_empty" mapstructure:"skip_empty"`
	// MaxLineSize accepts sizes such as "64KB" or "1MB".
	MaxLineSize string `yaml:"max_line_size" mapstructure:"max_line_size"`
}

// FilterConfig keeps only the messages matching Pattern, a regular
// expression. An empty pattern keeps everything.
type FilterConfig struct {
	Pattern string `yaml:"pattern" mapstructure:"pattern"`
}

// WindowConfig groups messages into batches.
type WindowConfig struct {
	Kind   string        `yaml:"kind" mapstructure:"kind"`
	Period time.Duration `yaml:"period" mapstructure:"period"`
	// Slide is how often a sliding window emits; Period is its length.
	Slide time.Duration `yaml:"slide" mapstructure:"slide"`
	// Size is the batch length of a counting window.
	Size      int  `yaml:"size" mapstructure:"size"`
	SkipEmpty bool `yaml:"skip_empty" mapstructure:"skip_empty"`
}

// ReduceConfig shapes the word counts.
type ReduceConfig struct {
	// Mode "window" counts each batch on its own, "running" keeps totals
	// across the whole run.
	Mode string `yaml:"mode" mapstructure:"mode"`
	// Top limits the reported words; 0 reports all of them.
	Top int `yaml:"top" mapstructure:"top"`
	// MinLength ignores shorter words.
	MinLength int  `yaml:"min_length" mapstructure:"min_length"`
	Lowercase bool `yaml:"lowercase" mapstructure:"lowercase"`
}

// SinkConfig selects and configures where results go.
type SinkConfig struct {
	Kind   string `yaml:"kind" mapstructure:"kind"`
	Prefix string `yaml:"prefix" mapstructure:"prefix"`
	// Path and Append configure the file sink.
	Path   string `yaml:"path" mapstructure:"path"`
	Append bool   `yaml:"append" mapstructure:"append"`
	// Topic is the event topic of the sse sink.
	Topic string `yaml:"topic" mapstructure:"topic"`
	// Key and TTL configure the redis-key sink; the key is prefixed with the
	// service name. A TTL of 0 keeps the key forever.
	Key string        `yaml:"key" mapstructure:"key"`
	TTL time.Duration `yaml:"ttl" mapstructure:"ttl"`
	// Retries is how many times the redis and kafka sinks retry a write.
	Retries int `yaml:"retries" mapstructure:"retries"`
}

// PipelineConfig sets the runner policies.
type PipelineConfig struct {
	ErrorPolicy  string        `yaml:"error_policy" mapstructure:"error_policy"`
	CancelPolicy string        `yaml:"cancel_policy" mapstructure:"cancel_policy"`
	DrainTimeout time.Duration `yaml:"drain_timeout" mapstructure:"drain_timeout"`
}

// TelemetryConfig configures OpenTelemetry export and the stats monitor.
type TelemetryConfig struct {
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
	// MonitorInterval is how often the monitor logs task counters; 0 disables logging.
	MonitorInterval time.Duration `yaml:"monitor_interval" mapstructure:"monitor_interval"`
}

// TracingConfig enables span export.
type TracingConfig struct {
	Enabled                    bool `yaml:"enabled" mapstructure:"enabled"`
	observability.TracerConfig `yaml:",inline" mapstructure:",squash"`
}

// MetricsConfig enables metric export.
type MetricsConfig struct {
	Enabled                   bool `yaml:"enabled" mapstructure:"enabled"`
	observability.MeterConfig `yaml:",inline" mapstructure:",squash"`
}

// ApplyDefaults sets default values for unset fields.
func (c *AppConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "floq"
	}
	if c.Version == "" {
		c.Version = version.Version
	}
	c.ServiceConfig.ApplyDefaults()

	if c.Source.Kind == "" {
		c.Source.Kind = SourceBluesky
	}
	switch c.Source.Kind {
	case SourceWebsocket:
		c.Source.Websocket.ApplyDefaults()
	case SourceBluesky:
		c.Source.Bluesky.ApplyDefaults()
	case SourceMastodon:
		c.Source.Mastodon.ApplyDefaults()
	}
	if c.Source.RateLimit > 0 && c.Source.Burst == 0 {
		c.Source.Burst = int(c.Source.RateLimit)
		if c.Source.Burst < 1 {
			c.Source.Burst = 1
		}
	}

	if c.Window.Kind == "" {
		c.Window.Kind = WindowTumbling
	}
	if c.Window.Period == 0 {
		c.Window.Period = 5 * time.Second
	}
	if c.Window.Slide == 0 {
		c.Window.Slide = c.Window.Period
	}
	if c.Window.Size == 0 {
		c.Window.Size = 100
	}

	if c.Reduce.Mode == "" {
		c.Reduce.Mode = ReducePerWindow
	}
	if c.Sink.Kind == "" {
		c.Sink.Kind = SinkPrinter
	}
	if c.Sink.Topic == "" {
		c.Sink.Topic = "wordcount"
	}
	if c.Sink.Key == "" {
		c.Sink.Key = "latest"
	}
	if c.Sink.Retries == 0 {
		c.Sink.Retries = 3
	}

	if c.Pipeline.ErrorPolicy == "" {
		c.Pipeline.ErrorPolicy = stream.AbortOnError.String()
	}
	if c.Pipeline.CancelPolicy == "" {
		c.Pipeline.CancelPolicy = stream.DiscardOnCancel.String()
	}
	if c.Pipeline.DrainTimeout == 0 {
		c.Pipeline.DrainTimeout = 5 * time.Second
	}

	if c.Source.Kind == SourceKafka || c.Sink.Kind == SinkKafka {
		c.Kafka.Enabled = true
	}
	if c.Source.Kind == SourceRedis || c.Sink.Kind == SinkRedis || c.Sink.Kind == SinkRedisKey {
		c.Redis.Enabled = true
	}
	if c.Sink.Kind == SinkSSE {
		c.Server.Enabled = true
	}
	c.Kafka.ApplyDefaults()
	c.Redis.ApplyDefaults()
	c.Server.ApplyDefaults()

	c.Telemetry.Tracing.TracerConfig = withTracerDefaults(c.Telemetry.Tracing.TracerConfig, c.ServiceConfig)
	c.Telemetry.Metrics.MeterConfig = withMeterDefaults(c.Telemetry.Metrics.MeterConfig, c.ServiceConfig)
	if c.Telemetry.MonitorInterval == 0 {
		c.Telemetry.MonitorInterval = 30 * time.Second
	}
}

func withTracerDefaults(tc observability.TracerConfig, svc config.ServiceConfig) observability.TracerConfig {
	d := observability.DefaultTracerConfig(svc.Name)
	d.Environment = svc.Environment
	if svc.Version != "" {
		d.ServiceVersion = svc.Version
	}
	if tc.ServiceName == "" {
		tc.ServiceName = d.ServiceName
	}
	if tc.ServiceVersion == "" {
		tc.ServiceVersion = d.ServiceVersion
	}
	if tc.Environment == "" {
		tc.Environment = d.Environment
	}
	if tc.Endpoint == "" {
		tc.Endpoint = d.Endpoint
		tc.Insecure = d.Insecure
	}
	if tc.SampleRate == 0 {
		tc.SampleRate = d.SampleRate
	}
	return tc
}

func withMeterDefaults(mc observability.MeterConfig, svc config.ServiceConfig) observability.MeterConfig {
	d := observability.DefaultMeterConfig(svc.Name)
	d.Environment = svc.Environment
	if svc.Version != "" {
		d.ServiceVersion = svc.Version
	}
	if mc.ServiceName == "" {
		mc.ServiceName = d.ServiceName
	}
	if mc.ServiceVersion == "" {
		mc.ServiceVersion = d.ServiceVersion
	}
	if mc.Environment == "" {
		mc.Environment = d.Environment
	}
	if mc.Endpoint == "" {
		mc.Endpoint = d.Endpoint
		mc.Insecure = d.Insecure
	}
	if mc.Interval == 0 {
		mc.Interval = d.Interval
	}
	return mc
}

// Validate checks the configuration, including the selected connectors.
func (c *AppConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}

	v := validation.New().
		OneOf("source.kind", c.Source.Kind, sourceKinds).
		OneOf("window.kind", c.Window.Kind, windowKinds).
		OneOf("reduce.mode", c.Reduce.Mode, reduceModes).
		OneOf("sink.kind", c.Sink.Kind, sinkKinds).
		OneOf("pipeline.error_policy", c.Pipeline.ErrorPolicy, []string{"abort", "skip"}).
		OneOf("pipeline.cancel_policy", c.Pipeline.CancelPolicy, []string{"discard", "flush"}).
		PositiveDuration("pipeline.drain_timeout", c.Pipeline.DrainTimeout).
		PositiveDuration("window.period", c.Window.Period).
		Custom(c.Source.RateLimit >= 0, "source.rate_limit", "must not be negative").
		Custom(c.Reduce.Top >= 0, "reduce.top", "must not be negative").
		Custom(c.Reduce.MinLength >= 0, "reduce.min_length", "must not be negative").
		Min("sink.retries", c.Sink.Retries, 1).
		Custom(c.Sink.TTL >= 0, "sink.ttl", "must not be negative").
		Regexp("filter.pattern", c.Filter.Pattern)
	switch c.Window.Kind {
	case WindowSliding:
		v.PositiveDuration("window.slide", c.Window.Slide).
			Custom(c.Window.Slide <= c.Window.Period, "window.slide", "must not exceed window.period")
	case WindowCounting:
		v.Min("window.size", c.Window.Size, 1)
	}
	switch c.Source.Kind {
	case SourceFile:
		_, sizeErr := util.ParseSize(c.Source.File.MaxLineSize)
		v.Required("source.file.path", c.Source.File.Path).
			Custom(sizeErr == nil, "source.file.max_line_size", "must be a size such as 64KB or 1MB")
	case SourceRedis:
		v.Required("redis.stream.key", c.Redis.Stream.Key)
	}
	switch c.Sink.Kind {
	case SinkFile:
		v.Required("sink.path", c.Sink.Path)
	case SinkRedis:
		v.Required("redis.stream.output_key", c.Redis.Stream.OutputKey)
	case SinkRedisKey:
		v.Required("sink.key", c.Sink.Key)
	}
	if err := v.Validate(); err != nil {
		return err
	}

	var connector error
	switch c.Source.Kind {
	case SourceWebsocket:
		connector = c.Source.Websocket.Validate()
	case SourceBluesky:
		connector = c.Source.Bluesky.Validate()
	case SourceMastodon:
		connector = c.Source.Mastodon.Validate()
	}
	if connector != nil {
		return connector
	}
	for _, check := range []func() error{c.Kafka.Validate, c.Redis.Validate, c.Server.Validate} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

// logFields summarizes the pipeline for the startup log. Secrets are masked.
func (c *AppConfig) logFields() map[string]interface{} {
	fields := map[string]interface{}{
		logger.FieldSource: c.Source.Kind,
		logger.FieldSink:   c.Sink.Kind,
		"window":           c.Window.Kind,
		"period":           c.Window.Period.String(),
		"reduce":           c.Reduce.Mode,
		"error_policy":     c.Pipeline.ErrorPolicy,
	}
	if c.Filter.Pattern != "" {
		fields["filter"] = c.Filter.Pattern
	}
	if c.Source.Kind == SourceMastodon && c.Source.Mastodon.AccessToken != "" {
		fields["mastodon_token"] = util.MaskSecret(c.Source.Mastodon.AccessToken, 4)
	}
	if c.Redis.Enabled && c.Redis.Password != "" {
		fields["redis_password"] = util.MaskSecret(c.Redis.Password, 0)
	}
	if c.Kafka.Enabled && c.Kafka.EnableSASL {
		fields["kafka_user"] = c.Kafka.Username
		fields["kafka_password"] = util.MaskSecret(c.Kafka.Password, 0)
	}
	return fields
}
