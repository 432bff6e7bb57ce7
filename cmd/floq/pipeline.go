package main

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/floq/kafka"
	"github.com/kbukum/floq/logger"
	"github.com/kbukum/floq/observability"
	"github.com/kbukum/floq/redis"
	"github.com/kbukum/floq/resilience"
	"github.com/kbukum/floq/sinks/printer"
	"github.com/kbukum/floq/sources/bluesky"
	"github.com/kbukum/floq/sources/file"
	"github.com/kbukum/floq/sources/mastodon"
	"github.com/kbukum/floq/sources/websocket"
	"github.com/kbukum/floq/sse"
	"github.com/kbukum/floq/stream"
	"github.com/kbukum/floq/util"
)

// deps carries what the pipeline needs from the started components.
type deps struct {
	redis   *redis.Client
	hub     sse.Broadcaster
	monitor *observability.Monitor
	metrics *observability.StageMetrics
	tracer  trace.Tracer
	out     io.Writer
	log     *logger.Logger
}

// buildTask assembles source → [shed] → [filter] → window → word count → sink.
func buildTask(ctx context.Context, cfg *AppConfig, d deps) (*stream.Task, error) {
	src, err := buildSource(cfg, d)
	if err != nil {
		return nil, err
	}
	flow := stream.From(src)

	if cfg.Source.RateLimit > 0 {
		rl := resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Name:  "source",
			Rate:  cfg.Source.RateLimit,
			Burst: cfg.Source.Burst,
		})
		flow = stream.Via(flow, resilience.Shed[string](rl))
	}
	if cfg.Filter.Pattern != "" {
		match, err := stream.Match(cfg.Filter.Pattern)
		if err != nil {
			return nil, fmt.Errorf("filter: %w", err)
		}
		flow = stream.Via(flow, match)
	}

	results := stream.Via(stream.Via(flow, buildWindow(cfg.Window)), wordCount(cfg.Reduce))

	sink, err := buildSink(cfg, d)
	if err != nil {
		return nil, err
	}

	opts, err := taskOptions(ctx, cfg, d, results.Name())
	if err != nil {
		return nil, err
	}
	return stream.To(results, sink, opts...), nil
}

func buildSource(cfg *AppConfig, d deps) (stream.Source[string], error) {
	sc := cfg.Source
	switch sc.Kind {
	case SourceFile:
		var opts []file.Option
		if sc.File.SkipEmpty {
			opts = append(opts, file.WithSkipEmpty())
		}
		size, err := util.ParseSize(sc.File.MaxLineSize)
		if err != nil {
			return nil, err
		}
		if size > 0 {
			opts = append(opts, file.WithMaxLineSize(int(size)))
		}
		return file.NewSource(sc.File.Path, opts...), nil

	case SourceWebsocket:
		return websocket.NewTextSource(sc.Websocket)

	case SourceBluesky:
		src, err := bluesky.NewSource(sc.Bluesky)
		if err != nil {
			return nil, err
		}
		return stream.Via(stream.From[bluesky.Post](src), bluesky.Texts()), nil

	case SourceMastodon:
		src, err := mastodon.NewSource(sc.Mastodon)
		if err != nil {
			return nil, err
		}
		return stream.Via(stream.From[mastodon.Status](src), mastodon.Texts()), nil

	case SourceKafka:
		src, err := kafka.NewSource(cfg.Kafka)
		if err != nil {
			return nil, err
		}
		return stream.Via(stream.From[kafka.Message](src), kafka.Texts()), nil

	case SourceRedis:
		if d.redis == nil {
			return nil, fmt.Errorf("redis source: redis is not connected")
		}
		src, err := redis.NewStreamSource(d.redis, cfg.Redis.Stream)
		if err != nil {
			return nil, err
		}
		return stream.Via(stream.From[redis.Entry](src), redis.Texts(cfg.Redis.Stream.Field)), nil
	}
	return nil, fmt.Errorf("unknown source kind %q", sc.Kind)
}

func buildWindow(wc WindowConfig) stream.Operator[string, stream.Batch[string]] {
	var opts []stream.WindowOption
	if wc.SkipEmpty {
		opts = append(opts, stream.WithSkipEmpty())
	}
	switch wc.Kind {
	case WindowSliding:
		return stream.Sliding[string](wc.Period, wc.Slide, opts...)
	case WindowCounting:
		return stream.Counting[string](wc.Size)
	default:
		return stream.Tumbling[string](wc.Period, opts...)
	}
}

func buildSink(cfg *AppConfig, d deps) (stream.Sink[Result], error) {
	sc := cfg.Sink
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = sc.Retries

	switch sc.Kind {
	case SinkPrinter:
		var opts []printer.Option
		if d.out != nil {
			opts = append(opts, printer.WithWriter(d.out))
		}
		return printer.New[Result](sc.Prefix, opts...), nil

	case SinkFile:
		sink, err := file.NewSink[Result](sc.Path, sc.Append, file.Text[Result])
		if err != nil {
			return nil, err
		}
		return sink, nil

	case SinkSSE:
		if d.hub == nil {
			return nil, fmt.Errorf("sse sink: no event hub")
		}
		return sse.NewSink[Result](d.hub, sc.Topic), nil

	case SinkRedis:
		if d.redis == nil {
			return nil, fmt.Errorf("redis sink: redis is not connected")
		}
		sink, err := redis.NewStreamSink[Result](d.redis, cfg.Redis.Stream, nil)
		if err != nil {
			return nil, err
		}
		return resilience.RetrySink[Result](sink, retry), nil

	case SinkRedisKey:
		if d.redis == nil {
			return nil, fmt.Errorf("redis-key sink: redis is not connected")
		}
		store := redis.NewTypedStore[Result](d.redis, cfg.Name)
		return resilience.RetrySink[Result](store.Sink(sc.Key, sc.TTL), retry), nil

	case SinkKafka:
		sink, err := kafka.NewSink[Result](cfg.Kafka, kafka.JSON[Result])
		if err != nil {
			return nil, err
		}
		cb := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("kafka-sink"))
		return resilience.BreakerSink[Result](resilience.RetrySink[Result](sink, retry), cb), nil
	}
	return nil, fmt.Errorf("unknown sink kind %q", sc.Kind)
}

func taskOptions(ctx context.Context, cfg *AppConfig, d deps, name string) ([]stream.TaskOption, error) {
	errPolicy, err := stream.ParseErrorPolicy(cfg.Pipeline.ErrorPolicy)
	if err != nil {
		return nil, err
	}
	cancelPolicy, err := stream.ParseCancelPolicy(cfg.Pipeline.CancelPolicy)
	if err != nil {
		return nil, err
	}

	var observers []stream.Observer
	if d.monitor != nil {
		observers = append(observers, d.monitor.Observer(name))
	}
	if d.metrics != nil {
		observers = append(observers, d.metrics.Observer(name))
	}
	if d.tracer != nil {
		observers = append(observers, observability.NewSpanObserver(ctx, d.tracer))
	}

	opts := []stream.TaskOption{
		stream.WithErrorPolicy(errPolicy),
		stream.WithCancelPolicy(cancelPolicy),
		stream.WithDrainTimeout(cfg.Pipeline.DrainTimeout),
		stream.WithObserver(stream.Observers(observers...)),
	}
	if d.log != nil {
		opts = append(opts, stream.WithLogger(d.log))
	}
	return opts, nil
}
