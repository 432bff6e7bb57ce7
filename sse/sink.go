package sse

import (
	"context"
	"encoding/json"
	"strconv"
	"sync/atomic"

	"github.com/kbukum/floq/errors"
	"github.com/kbukum/floq/stream"
)

// Sink publishes every consumed value as a JSON "result" event on topic.
// It never waits for subscribers: lagging clients lose events, the
// pipeline does not slow down.
type Sink[T any] struct {
	b     Broadcaster
	topic string
	seq   atomic.Int64
}

var _ stream.Sink[string] = (*Sink[string])(nil)

// NewSink publishes to topic through b.
func NewSink[T any](b Broadcaster, topic string) *Sink[T] {
	return &Sink[T]{b: b, topic: topic}
}

// Name implements stream.Namer.
func (s *Sink[T]) Name() string { return "sse:" + s.topic }

// Consume implements stream.Sink.
func (s *Sink[T]) Consume(_ context.Context, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.SinkFailed(s.Name(), err)
	}
	id := strconv.FormatInt(s.seq.Add(1), 10)
	s.b.Publish(s.topic, Event{Type: EventTypeResult, ID: id, Data: data})
	return nil
}
