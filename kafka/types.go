package kafka

import (
	"context"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

// Message is a record read from or written to a topic.
type Message struct {
	Key       string            `json:"key"`
	Value     []byte            `json:"value"`
	Topic     string            `json:"topic"`
	Partition int               `json:"partition"`
	Offset    int64             `json:"offset"`
	Timestamp time.Time         `json:"timestamp"`
	Headers   map[string]string `json:"headers,omitempty"`
}

// Text returns the value as a string.
func (m Message) Text() string { return string(m.Value) }

// Reader is the part of *kafkago.Reader the source uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer is the part of *kafkago.Writer the sink uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// fromKafkaMessage converts a kafka-go message to Message.
func fromKafkaMessage(msg kafkago.Message) Message {
	var headers map[string]string
	if len(msg.Headers) > 0 {
		headers = make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			headers[h.Key] = string(h.Value)
		}
	}
	return Message{
		Key:       string(msg.Key),
		Value:     msg.Value,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
		Headers:   headers,
	}
}

// toKafkaMessage converts m for a writer; topic and partition are left to
// the writer's configuration.
func (m Message) toKafkaMessage() kafkago.Message {
	var headers []kafkago.Header
	for k, v := range m.Headers {
		headers = append(headers, kafkago.Header{Key: k, Value: []byte(v)})
	}
	var key []byte
	if m.Key != "" {
		key = []byte(m.Key)
	}
	return kafkago.Message{
		Key:     key,
		Value:   m.Value,
		Time:    m.Timestamp,
		Headers: headers,
	}
}
