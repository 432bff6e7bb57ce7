package kafka

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"sync"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/floq/logger"
	"github.com/kbukum/floq/resilience"
	"github.com/kbukum/floq/stream"
)

// Source reads a topic as a stream of Messages. With a consumer group the
// offset of a message is committed once the next message is requested, so
// a message is acknowledged only after the pipeline took it.
type Source struct {
	cfg       Config
	log       *logger.Logger
	newReader func(cfg Config) (Reader, error)
	backoff   resilience.RetryConfig

	mu     sync.Mutex
	active Reader
}

var _ stream.Source[Message] = (*Source)(nil)

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithReader replaces the kafka-go reader, mainly for tests.
func WithReader(fn func(cfg Config) (Reader, error)) SourceOption {
	return func(s *Source) { s.newReader = fn }
}

// WithReadBackoff sets the delays between retryable read failures.
func WithReadBackoff(cfg resilience.RetryConfig) SourceOption {
	return func(s *Source) { s.backoff = cfg }
}

// NewSource creates a topic source.
func NewSource(cfg Config, opts ...SourceOption) (*Source, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Source{
		cfg:       cfg,
		log:       logger.Get("kafka").WithComponent("kafka.source"),
		newReader: newKafkaReader,
		backoff:   resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Name implements stream.Namer.
func (s *Source) Name() string { return "kafka:" + s.cfg.Topic }

// Open implements stream.Source.
func (s *Source) Open(ctx context.Context) (stream.Producer[Message], error) {
	r, err := s.newReader(s.cfg)
	if err != nil {
		return nil, sourceError(s.Name(), err)
	}
	s.mu.Lock()
	s.active = r
	s.mu.Unlock()
	s.log.Info("kafka source opened", logger.Fields(
		"topic", s.cfg.Topic,
		"group_id", s.cfg.GroupID,
		"brokers", s.cfg.Brokers,
	))
	return &sourceProducer{
		src:     s,
		reader:  r,
		backoff: resilience.NewBackoff(s.backoff),
	}, nil
}

// Stats returns reader statistics of the open run when it reads through kafka-go.
func (s *Source) Stats() (ReaderMetrics, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kr, ok := s.active.(*kafkago.Reader)
	if !ok {
		return ReaderMetrics{}, false
	}
	return CollectReaderMetrics(kr.Stats()), true
}

func newKafkaReader(cfg Config) (Reader, error) {
	dialer, err := newDialer(&cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka reader dialer: %w", err)
	}
	rc := kafkago.ReaderConfig{
		Brokers:           cfg.Brokers,
		Topic:             cfg.Topic,
		GroupID:           cfg.GroupID,
		Dialer:            dialer,
		MinBytes:          1,
		MaxBytes:          cfg.MaxBytes,
		SessionTimeout:    cfg.SessionTimeout,
		HeartbeatInterval: cfg.HeartbeatInterval,
		ErrorLogger: kafkago.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Get("kafka").Error("reader: "+fmt.Sprintf(msg, args...), logger.Fields("topic", cfg.Topic))
		}),
	}
	if cfg.GroupID != "" {
		rc.StartOffset = kafkago.FirstOffset
	}
	return kafkago.NewReader(rc), nil
}

type sourceProducer struct {
	src      *Source
	reader   Reader
	backoff  *resilience.Backoff
	uncommit *kafkago.Message
}

func (p *sourceProducer) Next(ctx context.Context) (Message, stream.Outcome, error) {
	if err := p.commit(ctx); err != nil {
		return Message{}, stream.Pending, err
	}
	msg, err := p.reader.FetchMessage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return Message{}, stream.Pending, ctx.Err()
		}
		if stderrors.Is(err, io.EOF) {
			return Message{}, stream.Exhausted, nil
		}
		if !IsRetryableError(err) || p.backoff.Attempts() >= p.src.cfg.MaxReadFailures {
			return Message{}, stream.Pending, sourceError(p.src.Name(), err)
		}
		p.src.log.Warn("kafka read failed, backing off", logger.Fields(
			logger.FieldError, err.Error(),
			"failures", p.backoff.Attempts()+1,
		))
		if werr := p.backoff.Wait(ctx); werr != nil {
			return Message{}, stream.Pending, werr
		}
		return Message{}, stream.Pending, nil
	}
	p.backoff.Reset()
	if p.src.cfg.GroupID != "" {
		p.uncommit = &msg
	}
	return fromKafkaMessage(msg), stream.Produced, nil
}

func (p *sourceProducer) commit(ctx context.Context) error {
	if p.uncommit == nil {
		return nil
	}
	if err := p.reader.CommitMessages(ctx, *p.uncommit); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return sourceError(p.src.Name(), fmt.Errorf("commit offset %d: %w", p.uncommit.Offset, err))
	}
	p.uncommit = nil
	return nil
}

// Close leaves the last message uncommitted; it is redelivered on the next run.
func (p *sourceProducer) Close() error { return p.reader.Close() }

// Texts maps messages to their values as strings.
func Texts() stream.Operator[Message, string] {
	return stream.Named("kafka-text", stream.MapOne(stream.Each(func(_ context.Context, m Message) (string, error) {
		return m.Text(), nil
	})))
}
