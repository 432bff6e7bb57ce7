package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/floq/errors"
	"github.com/kbukum/floq/logger"
	"github.com/kbukum/floq/stream"
)

// Encoder renders a pipeline value as a message.
type Encoder[T any] func(v T) (Message, error)

// JSON encodes values as JSON message bodies.
func JSON[T any](v T) (Message, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Message{}, err
	}
	return Message{Value: b, Headers: map[string]string{"content-type": "application/json"}}, nil
}

// Sink publishes every value it consumes to the configured topic.
type Sink[T any] struct {
	cfg    Config
	encode Encoder[T]
	log    *logger.Logger

	mu     sync.Mutex
	writer Writer
	closed bool
}

var _ stream.Sink[int] = (*Sink[int])(nil)

// NewSink creates a topic sink. A nil encode falls back to JSON.
func NewSink[T any](cfg Config, encode Encoder[T]) (*Sink[T], error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	w, err := newKafkaWriter(cfg)
	if err != nil {
		return nil, errors.InvalidConfig("kafka", err.Error()).WithCause(err)
	}
	return NewSinkWithWriter(cfg, w, encode), nil
}

// NewSinkWithWriter creates a sink over an existing writer.
func NewSinkWithWriter[T any](cfg Config, w Writer, encode Encoder[T]) *Sink[T] {
	if encode == nil {
		encode = JSON[T]
	}
	return &Sink[T]{
		cfg:    cfg,
		encode: encode,
		writer: w,
		log:    logger.Get("kafka").WithComponent("kafka.sink"),
	}
}

func newKafkaWriter(cfg Config) (*kafkago.Writer, error) {
	transport, err := newTransport(&cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka writer transport: %w", err)
	}
	log := logger.Get("kafka")
	return &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Transport:    transport,
		Balancer:     &kafkago.LeastBytes{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafkago.RequiredAcks(cfg.RequiredAcks),
		Compression:  compressionCodec(cfg.Compression),
		WriteTimeout: cfg.WriteTimeout,
		ErrorLogger: kafkago.LoggerFunc(func(msg string, args ...interface{}) {
			log.Error("writer: "+fmt.Sprintf(msg, args...), logger.Fields("topic", cfg.Topic))
		}),
	}, nil
}

// Name implements stream.Namer.
func (s *Sink[T]) Name() string { return "kafka:" + s.cfg.Topic }

// Consume encodes v and writes it synchronously.
func (s *Sink[T]) Consume(ctx context.Context, v T) error {
	msg, err := s.encode(v)
	if err != nil {
		return errors.SinkFailed(s.Name(), err)
	}
	s.mu.Lock()
	w, closed := s.writer, s.closed
	s.mu.Unlock()
	if closed {
		return errors.SinkFailed(s.Name(), fmt.Errorf("sink is closed"))
	}
	if err := w.WriteMessages(ctx, msg.toKafkaMessage()); err != nil {
		return sinkError(s.Name(), err)
	}
	s.log.Debug("message published", logger.Fields("topic", s.cfg.Topic, "bytes", len(msg.Value)))
	return nil
}

// Close flushes pending writes and closes the writer.
func (s *Sink[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.writer.Close()
}

// Stats returns writer statistics when the sink runs on a kafka-go writer.
func (s *Sink[T]) Stats() (WriterMetrics, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kw, ok := s.writer.(*kafkago.Writer)
	if !ok {
		return WriterMetrics{}, false
	}
	return CollectWriterMetrics(kw.Stats()), true
}
